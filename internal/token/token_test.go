package token_test

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SergeiKhy/lead-attribution/internal/token"
)

func randomCode(t *testing.T) string {
	t.Helper()
	result := make([]byte, token.CodeLength)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(token.CodeAlphabet))))
		require.NoError(t, err)
		result[i] = token.CodeAlphabet[num.Int64()]
	}
	return string(result)
}

// TestToken_RoundTrip проверяет точный round-trip для кодов из алфавита генератора
func TestToken_RoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := randomCode(t)

		decoded, ok := token.Decode(token.Encode(code))

		require.True(t, ok, "code %q", code)
		assert.Equal(t, code, decoded)
	}
}

// TestToken_RoundTrip_AllAlphabetSymbols прогоняет каждый символ алфавита
func TestToken_RoundTrip_AllAlphabetSymbols(t *testing.T) {
	for _, r := range token.CodeAlphabet {
		code := string([]rune{r, r, r, r, r, r})

		decoded, ok := token.Decode(token.Encode(code))

		require.True(t, ok)
		assert.Equal(t, code, decoded)
	}
}

// TestToken_Decode_IgnoresVisibleText: токен переживает вставку в обычное сообщение
func TestToken_Decode_IgnoresVisibleText(t *testing.T) {
	code := "CDXYZW"
	text := "Olá! " + token.Encode(code) + " Vim através do anúncio."

	decoded, ok := token.Decode(text)

	require.True(t, ok)
	assert.Equal(t, code, decoded)
}

// TestToken_Decode_NoInvisibleRun: текст без невидимых символов не содержит токена
func TestToken_Decode_NoInvisibleRun(t *testing.T) {
	decoded, ok := token.Decode("просто обычное сообщение")

	assert.False(t, ok)
	assert.Empty(t, decoded)
}

// TestToken_Decode_EmptyText проверяет пустой вход
func TestToken_Decode_EmptyText(t *testing.T) {
	_, ok := token.Decode("")
	assert.False(t, ok)
}

// TestToken_Decode_LegacySingleUnits: ранние токены из одно- и двухюнитных
// кодовых слов всё ещё распознаются
func TestToken_Decode_LegacySingleUnits(t *testing.T) {
	// '0' кодируется одним юнитом, 'A' — парой.
	// Конкатенация декодируется жадно: тройка не совпадает, пара 'A' берётся первой.
	decoded, ok := token.Decode(token.Encode("A") + "text")

	require.True(t, ok)
	assert.Equal(t, "A", decoded)
}

// TestToken_Strip удаляет невидимые символы, сохраняя видимый текст
func TestToken_Strip(t *testing.T) {
	code := randomCode(t)
	text := "Hi, " + token.Encode(code) + "interested"

	assert.Equal(t, "Hi, interested", token.Strip(text))
}

// TestToken_Strip_NoInvisible: текст без токена не меняется
func TestToken_Strip_NoInvisible(t *testing.T) {
	text := "обычный текст с юникодом: ação, 价格"
	assert.Equal(t, text, token.Strip(text))
}

// TestToken_Strip_BOM вычищает BOM, который вставляют некоторые клиенты
func TestToken_Strip_BOM(t *testing.T) {
	assert.Equal(t, "hello", token.Strip("\uFEFFhello"))
}

// TestToken_Contains детектирует присутствие невидимого алфавита
func TestToken_Contains(t *testing.T) {
	assert.True(t, token.Contains(token.Encode("CDEFGH")+"hi"))
	assert.False(t, token.Contains("hi"))
}

// TestToken_Encode_SkipsUnknownSymbols: символы вне таблицы не кодируются
func TestToken_Encode_SkipsUnknownSymbols(t *testing.T) {
	assert.Empty(t, token.Encode("!@#"))
	assert.Equal(t, token.Encode("CD"), token.Encode("C!D"))
}
