package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required,notEmpty"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
		MaxRows            int    `env:"MAX_ROWS" envDefault:"2000"`         // 单次上传允许写入的最大行数
		InsertBatchSize    int    `env:"INSERT_BATCH_SIZE" envDefault:"500"` // 每条 INSERT 语句携带的行数
	} `envPrefix:"DATABASE_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		DB                  int    `env:"DB" envDefault:"0"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"5"`
		ChangeChannel       string `env:"CHANGE_CHANNEL" envDefault:"schedule:changed"`
		PreferencePrefix    string `env:"PREFERENCE_PREFIX" envDefault:"prefs:"`
	} `envPrefix:"REDIS_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"` // 为空时不发送通知邮件
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Email struct {
		Recipients []string `env:"RECIPIENTS" envSeparator:","`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	Upload struct {
		MaxBytes          int64 `env:"MAX_BYTES" envDefault:"10485760"` // 10 MiB
		MaxReportedErrors int   `env:"MAX_REPORTED_ERRORS" envDefault:"5"`
	} `envPrefix:"UPLOAD_"`
	Schedule struct {
		ResubscribeDelay int `env:"RESUBSCRIBE_DELAY" envDefault:"5"`
		PollInterval     int `env:"POLL_INTERVAL" envDefault:"30"` // 定期比对批次号，弥补丢失的变更通知，0 表示不检查
	} `envPrefix:"SCHEDULE_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
