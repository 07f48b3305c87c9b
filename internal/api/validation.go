package api

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/service"
)

// Markup that must never reach a prompt.
var dangerousContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script\b`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe\b`),
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator:
// safecontent, framework and hexid.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}

	var err error
	registerOnce.Do(func() {
		for tag, fn := range map[string]validator.Func{
			"safecontent": safeContent,
			"framework":   framework,
			"hexid":       hexID,
		} {
			if err = v.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
	})
	return err
}

func safeContent(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	for _, re := range dangerousContent {
		if re.MatchString(s) {
			return false
		}
	}
	return true
}

func framework(fl validator.FieldLevel) bool {
	return domain.ValidFramework(fl.Field().String())
}

func hexID(fl validator.FieldLevel) bool {
	return service.ValidFileID(fl.Field().String())
}
