package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"memwatch/internal/logging"
	"memwatch/memory"
	"memwatch/split"
)

// Types lists the value types a watcher may declare.
var Types = []string{
	"bool",
	"u8", "u16", "u32", "u64",
	"i8", "i16", "i32", "i64",
	"f32", "f64",
	"string", "pointer",
}

// ValidType reports whether t is one of Types.
func ValidType(t string) bool {
	return slices.Contains(Types, t)
}

func numeric(t string) bool {
	switch t {
	case "bool", "string", "pointer":
		return false
	}
	return ValidType(t)
}

// validate checks the per-field rules declared in struct tags. Rules that
// span fields live in Validate.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("pointerwidth", func(fl validator.FieldLevel) bool {
		_, err := memory.ParsePointerWidth(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := logging.ParseSeverity(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("valuetype", func(fl validator.FieldLevel) bool {
		return ValidType(fl.Field().String())
	})
	_ = validate.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		return split.Action(fl.Field().String()).Valid()
	})
}

// fieldProblem renders one failed tag as "path: problem".
func fieldProblem(fe validator.FieldError) string {
	path := strings.TrimPrefix(fe.Namespace(), "Config.")
	parent, field := path, fe.Field()
	if i := strings.LastIndex(path, "."); i >= 0 {
		parent = path[:i]
	}
	switch fe.Tag() {
	case "required":
		if parent == path {
			return path + ": empty"
		}
		return fmt.Sprintf("%s: missing %s", parent, field)
	case "gte":
		return path + ": must not be negative"
	case "oneof", "valuetype", "action":
		return fmt.Sprintf("%s: unknown %s %q", parent, field, fe.Value())
	case "pointerwidth", "loglevel":
		return fmt.Sprintf("%s: unsupported value %q", path, fe.Value())
	}
	return fmt.Sprintf("%s: fails %s", path, fe.Tag())
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		for _, fe := range fieldErrs {
			fail("%s", fieldProblem(fe))
		}
	}

	names := map[string]bool{}
	for i, w := range c.Watchers {
		if w.Name != "" && names[w.Name] {
			fail("watchers[%d]: duplicate name %q", i, w.Name)
		}
		names[w.Name] = true
		if c.Emulator != nil && w.Module != "" {
			fail("watchers[%d] %s: module is not allowed for emulator targets", i, w.Name)
		}
	}

	if c.GameTime != "" {
		if w, ok := c.Watcher(c.GameTime); !ok || !numeric(w.Type) {
			fail("game_time: %q is not a numeric watcher", c.GameTime)
		}
	}

	if lr := c.LoadRemoval; lr != nil {
		if w, ok := c.Watcher(lr.Loading); !ok || w.Type != "bool" {
			fail("load_removal.loading: %q is not a bool watcher", lr.Loading)
		}
		if lr.Scene != "" {
			if w, ok := c.Watcher(lr.Scene); !ok || w.Type != "string" {
				fail("load_removal.scene: %q is not a string watcher", lr.Scene)
			}
		} else if lr.StartScene != "" {
			fail("load_removal.start_scene: requires scene")
		}
	}

	return errors.Join(errs...)
}
