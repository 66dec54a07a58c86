package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/board"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/config"
)

// MailPublisher 是 *amqp.Channel 中发布消息的部分，为 nil 时不发送通知邮件
type MailPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	board       *board.Board
	translator  ut.Translator
	mailChannel MailPublisher

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, b *board.Board, mailCh MailPublisher) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		board:       b,
		translator:  trans,
		mailChannel: mailCh,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(h.clientID)

	h.Mux.Route("/schedule", func(r chi.Router) {
		r.Delete("/", h.ClearSchedule)
		r.Post("/upload", h.UploadSchedule)
		r.Get("/entries", h.GetScheduleEntries)
		r.Get("/meta", h.GetScheduleMeta)
		r.Get("/status", h.GetScheduleStatus)
		r.Get("/views", h.GetScheduleViews)
		r.Get("/stream", h.StreamSchedule)
	})

	h.Mux.Route("/preferences", func(r chi.Router) {
		r.Get("/", h.GetPreferences)
		r.Patch("/", h.UpdatePreferences)
	})
}
