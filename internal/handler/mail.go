package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/ingest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/views"
)

func (h *Handler) publishScheduleUpdated(result *ingest.Result) {
	h.publishMail(domain.MailTypeScheduleUpdated, domain.ScheduleUpdatedMailData{
		Count:     len(result.Entries),
		People:    views.People(result.Entries),
		Warnings:  result.ErrorCount(),
		UpdatedAt: time.Now(),
	})
}

func (h *Handler) publishScheduleCleared() {
	h.publishMail(domain.MailTypeScheduleCleared, domain.ScheduleClearedMailData{
		ClearedAt: time.Now(),
	})
}

// publishMail 给每个收件人发送一条消息到邮件队列。
// 通知失败不影响班表操作本身，只记录日志。
func (h *Handler) publishMail(mailType string, data any) {
	if h.mailChannel == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	for _, to := range h.config.Email.Recipients {
		mailMessage := domain.MailMessage{
			Type: mailType,
			To:   to,
			Data: data,
		}

		// 序列化邮件
		mailData, err := json.Marshal(mailMessage)
		if err != nil {
			slog.Error("无法序列化邮件", "type", mailType, "error", err)
			return
		}

		if err := h.mailChannel.PublishWithContext(
			ctx,
			"",
			h.config.RabbitMQ.Queue,
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        mailData,
			},
		); err != nil {
			slog.Error("无法发送邮件到消息队列", "type", mailType, "to", to, "error", err)
		}
	}
}
