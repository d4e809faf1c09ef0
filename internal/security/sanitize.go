// Package security — санитизация входящих callback'ов провайдера до того,
// как они попадут в бизнес-логику, и журналирование событий безопасности.
package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ошибки санитизации
var (
	ErrInvalidPhone    = errors.New("невалидный номер телефона")
	ErrInvalidInstance = errors.New("невалидное имя инстанса")
	ErrEmptyMessage    = errors.New("пустое сообщение")
)

// Границы полей
const (
	minPhoneDigits   = 8
	maxPhoneDigits   = 15
	maxMessageLength = 4096
)

// DefaultCountryCode — код страны по умолчанию для национальных номеров.
const DefaultCountryCode = "55"

const (
	userJIDSuffix  = "@s.whatsapp.net"
	groupJIDSuffix = "@g.us"
)

var instancePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]{0,63}$`)

// SanitizePhone нормализует идентификатор контакта к номеру из одних цифр
// с кодом страны. Принимает как голый номер, так и JID вида
// "5585999998888@s.whatsapp.net".
func SanitizePhone(raw string) (string, error) {
	raw = strings.TrimSuffix(raw, userJIDSuffix)

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", ErrInvalidPhone
	}

	// Национальный формат (DDD + 8/9 цифр) дополняется кодом страны.
	if !strings.HasPrefix(digits, DefaultCountryCode) &&
		(len(digits) == 10 || len(digits) == 11) {
		digits = DefaultCountryCode + digits
	}

	return digits, nil
}

// SanitizeMessage ограничивает длину текста и вычищает управляющие символы.
// Невидимые символы атрибуции (категория Cf) намеренно сохраняются.
func SanitizeMessage(text string) (string, error) {
	if text == "" {
		return "", ErrEmptyMessage
	}

	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, text)

	if cleaned == "" {
		return "", ErrEmptyMessage
	}

	runes := []rune(cleaned)
	if len(runes) > maxMessageLength {
		cleaned = string(runes[:maxMessageLength])
	}

	return cleaned, nil
}

// SanitizeInstance проверяет имя канала по допустимому шаблону.
func SanitizeInstance(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !instancePattern.MatchString(name) {
		return "", ErrInvalidInstance
	}
	return name, nil
}

// IsGroupJID сообщает, относится ли идентификатор к групповому чату.
// Групповые сообщения безусловно отбрасываются: атрибуция работает
// только с перепиской один-на-один.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, groupJIDSuffix)
}
