package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeiKhy/lead-attribution/internal/security"
	"github.com/SergeiKhy/lead-attribution/internal/token"
)

// TestSanitizePhone_JID проверяет разбор JID провайдера
func TestSanitizePhone_JID(t *testing.T) {
	phone, err := security.SanitizePhone("5585999998888@s.whatsapp.net")

	require.NoError(t, err)
	assert.Equal(t, "5585999998888", phone)
}

// TestSanitizePhone_National: национальный номер дополняется кодом страны
func TestSanitizePhone_National(t *testing.T) {
	phone, err := security.SanitizePhone("85999998888")

	require.NoError(t, err)
	assert.Equal(t, "5585999998888", phone)
}

// TestSanitizePhone_StripsFormatting вычищает всё, кроме цифр
func TestSanitizePhone_StripsFormatting(t *testing.T) {
	phone, err := security.SanitizePhone("+55 (85) 99999-8888")

	require.NoError(t, err)
	assert.Equal(t, "5585999998888", phone)
}

// TestSanitizePhone_TooShort отклоняет короткие номера
func TestSanitizePhone_TooShort(t *testing.T) {
	_, err := security.SanitizePhone("1234567")
	assert.ErrorIs(t, err, security.ErrInvalidPhone)
}

// TestSanitizePhone_TooLong отклоняет номера длиннее E.164
func TestSanitizePhone_TooLong(t *testing.T) {
	_, err := security.SanitizePhone("1234567890123456")
	assert.ErrorIs(t, err, security.ErrInvalidPhone)
}

// TestSanitizePhone_Injection: нецифровой мусор не проходит
func TestSanitizePhone_Injection(t *testing.T) {
	_, err := security.SanitizePhone("'; DROP TABLE leads; --")
	assert.ErrorIs(t, err, security.ErrInvalidPhone)
}

// TestSanitizeMessage_PreservesInvisibleToken: санитизация не ломает атрибуцию
func TestSanitizeMessage_PreservesInvisibleToken(t *testing.T) {
	code := "CDEFGH"
	raw := token.Encode(code) + "Olá, quero saber mais"

	cleaned, err := security.SanitizeMessage(raw)

	require.NoError(t, err)
	decoded, ok := token.Decode(cleaned)
	require.True(t, ok)
	assert.Equal(t, code, decoded)
}

// TestSanitizeMessage_RemovesControlChars вычищает управляющие символы
func TestSanitizeMessage_RemovesControlChars(t *testing.T) {
	cleaned, err := security.SanitizeMessage("hi\x00\x1bthere")

	require.NoError(t, err)
	assert.Equal(t, "hithere", cleaned)
}

// TestSanitizeMessage_KeepsNewlines: переносы строк и табы легальны
func TestSanitizeMessage_KeepsNewlines(t *testing.T) {
	cleaned, err := security.SanitizeMessage("line1\nline2\tend")

	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\tend", cleaned)
}

// TestSanitizeMessage_Truncates обрезает слишком длинный текст
func TestSanitizeMessage_Truncates(t *testing.T) {
	cleaned, err := security.SanitizeMessage(strings.Repeat("а", 5000))

	require.NoError(t, err)
	assert.Len(t, []rune(cleaned), 4096)
}

// TestSanitizeMessage_Empty отклоняет пустое сообщение
func TestSanitizeMessage_Empty(t *testing.T) {
	_, err := security.SanitizeMessage("")
	assert.ErrorIs(t, err, security.ErrEmptyMessage)
}

// TestSanitizeInstance_Valid принимает стандартные имена
func TestSanitizeInstance_Valid(t *testing.T) {
	for _, name := range []string{"main", "loja-01", "prod_instance.v2", "X"} {
		got, err := security.SanitizeInstance(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, got)
	}
}

// TestSanitizeInstance_Invalid отклоняет мусор
func TestSanitizeInstance_Invalid(t *testing.T) {
	for _, name := range []string{"", "-leading", "has space", "a/b", strings.Repeat("x", 65)} {
		_, err := security.SanitizeInstance(name)
		assert.ErrorIs(t, err, security.ErrInvalidInstance, name)
	}
}

// TestIsGroupJID различает группы и личные чаты
func TestIsGroupJID(t *testing.T) {
	assert.True(t, security.IsGroupJID("123456789-987654@g.us"))
	assert.False(t, security.IsGroupJID("5585999998888@s.whatsapp.net"))
}

// TestPhoneVariations_Full: полный номер порождает все варианты поиска
func TestPhoneVariations_Full(t *testing.T) {
	variations := security.PhoneVariations("5585999998888")

	assert.Contains(t, variations, "5585999998888")
	assert.Contains(t, variations, "85999998888")
	assert.Contains(t, variations, "5999998888")
	assert.Contains(t, variations, "555999998888")
}

// TestPhoneVariations_NoDuplicates: варианты не повторяются
func TestPhoneVariations_NoDuplicates(t *testing.T) {
	variations := security.PhoneVariations("5585999998888")

	seen := make(map[string]bool)
	for _, v := range variations {
		assert.False(t, seen[v], v)
		seen[v] = true
	}
}
