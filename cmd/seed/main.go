package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/config"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/ingest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/repository"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/seed"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var people int
	var out string
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 生成随机的示例工作簿, 2: 导入文件并替换共享班表)")
	flag.IntVar(&n, "n", 30, "示例工作簿中的记录数量")
	flag.IntVar(&people, "people", 5, "示例工作簿中的人数")
	flag.StringVar(&out, "out", "sample_schedule.xlsx", "示例工作簿的输出路径")
	flag.StringVar(&file, "file", "", "要导入的文件路径")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 || people <= 0 {
			slog.Error("请输入合法的记录数量和人数")
			return
		}
		if err := writeSample(out, n, people); err != nil {
			slog.Error("无法生成示例工作簿", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("生成示例工作簿成功", slog.String("path", out), slog.Int("count", n))
	case 2:
		if file == "" {
			slog.Error("请指定要导入的文件")
			return
		}
		if err := importFile(file); err != nil {
			slog.Error("导入失败", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		slog.Error("指定的操作非法")
	}
}

func writeSample(path string, n, people int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries := utils.GenerateRandomEntries(n, utils.GenerateRandomPeople(people), time.Now())
	return seed.WriteSampleWorkbook(f, entries)
}

func importFile(path string) error {
	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("无法读取配置文件: %w", err)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("无法创建数据库连接池: %w", err)
	}
	defer dbpool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		return fmt.Errorf("无法连接到数据库: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	repo := repository.NewRepository(cfg, dbpool, rdb)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("无法创建数据表: %w", err)
	}

	result, err := seed.ImportFile(context.Background(), repo, path, ingest.Options{
		MaxReportedErrors: cfg.Upload.MaxReportedErrors,
	})
	if err != nil {
		return err
	}

	slog.Info("导入成功", slog.Int("count", len(result.Entries)), slog.Int("warnings", result.ErrorCount()))
	if summary := result.Summary(); summary != "" {
		fmt.Println(summary)
	}
	return nil
}
