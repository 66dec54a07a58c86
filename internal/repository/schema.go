package repository

import (
	"context"
	_ "embed"
	"time"
)

//go:embed schema.sql
var schema string

// EnsureSchema 在表不存在时创建班表相关的表
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, schema)
	return err
}
