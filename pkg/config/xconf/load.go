package xconf

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load 以 defaults 为初值解码 path 下的配置，再按 `validate` 标签校验。
//
// 配置中缺失的字段保留 defaults 中的值。T 实现 Validate() error 时一并调用。
func Load[T any](s *Source, path string, defaults T) (T, error) {
	cfg := defaults
	if s != nil {
		if err := s.Unmarshal(path, &cfg); err != nil {
			return defaults, err
		}
	}
	if err := Validate(cfg); err != nil {
		return defaults, err
	}
	return cfg, nil
}

// Validate 校验结构体的 `validate` 标签与 Validate() 方法，两者的错误合并后包装为 ErrInvalidConfig。
func Validate(cfg any) error {
	var errs []error
	if v := reflect.ValueOf(cfg); v.Kind() == reflect.Struct || (v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct) {
		if err := validate.Struct(cfg); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		}
	}
	if v, ok := cfg.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
