package domain

import (
	"errors"
	"fmt"
)

// ErrTooManyRows 表示上传的行数超过了存储单次替换所允许的上限，此时不会截断写入
var ErrTooManyRows = errors.New("班表行数超过上限")

// StoreError 包装共享班表存储的写入或订阅失败
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("班表存储操作 %s 失败: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
