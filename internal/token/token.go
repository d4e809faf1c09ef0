// Package token реализует обратимое кодирование короткого трекинг-кода
// в последовательность невидимых (zero-width) символов Юникода. Токен
// вшивается в текст сообщения и переживает копирование в чат.
package token

import (
	"strings"
)

// Невидимый алфавит из трёх zero-width символов.
const (
	unitA = '​' // Zero Width Space
	unitB = '‌' // Zero Width Non-Joiner
	unitC = '‍' // Zero Width Joiner
)

// bom дополнительно вычищается при Strip: часть клиентов вставляет его сама.
// Записан escape-формой: сырой U+FEFF в середине файла компилятор отвергает.
const bom = '\uFEFF'

// CodeLength — длина трекинг-кода в символах.
const CodeLength = 6

// CodeAlphabet — алфавит генератора трекинг-кодов. Ограничен символами с
// трёхюнитными кодовыми словами: только для них жадное декодирование
// 3->2->1 даёт точный round-trip на любой конкатенации (см. DESIGN.md).
const CodeAlphabet = "CDEFGHIJKLMNOPQRSTUVWXYZ"

// encodeMap — таблица символ -> кодовое слово. Совместима с токенами,
// выпущенными ранними версиями системы (символы 0-9 и A-B включительно).
var encodeMap = map[rune]string{
	'0': "​",
	'1': "‌",
	'2': "‍",
	'3': "​​",
	'4': "​‌",
	'5': "​‍",
	'6': "‌​",
	'7': "‌‌",
	'8': "‌‍",
	'9': "‍​",
	'A': "‍‌",
	'B': "‍‍",
	'C': "​​​",
	'D': "​​‌",
	'E': "​​‍",
	'F': "​‌​",
	'G': "​‌‌",
	'H': "​‌‍",
	'I': "​‍​",
	'J': "​‍‌",
	'K': "​‍‍",
	'L': "‌​​",
	'M': "‌​‌",
	'N': "‌​‍",
	'O': "‌‌​",
	'P': "‌‌‌",
	'Q': "‌‌‍",
	'R': "‌‍​",
	'S': "‌‍‌",
	'T': "‌‍‍",
	'U': "‍​​",
	'V': "‍​‌",
	'W': "‍​‍",
	'X': "‍‌​",
	'Y': "‍‌‌",
	'Z': "‍‍​",
}

// decodeMap — обратная таблица, заполняется из encodeMap.
var decodeMap = func() map[string]rune {
	m := make(map[string]rune, len(encodeMap))
	for r, word := range encodeMap {
		m[word] = r
	}
	return m
}()

// Encode кодирует трекинг-код в строку невидимых символов.
// Символы вне таблицы пропускаются.
func Encode(code string) string {
	var b strings.Builder
	for _, r := range code {
		b.WriteString(encodeMap[r])
	}
	return b.String()
}

// Decode извлекает трекинг-код из произвольного текста. Видимые символы
// игнорируются; невидимые юниты склеиваются в один поток и разбираются
// жадно: сперва тройки, затем пары, затем одиночные юниты.
// Возвращает false, если в тексте нет ни одного невидимого юнита.
func Decode(text string) (string, bool) {
	var run []rune
	for _, r := range text {
		if r == unitA || r == unitB || r == unitC {
			run = append(run, r)
		}
	}
	if len(run) == 0 {
		return "", false
	}

	var decoded strings.Builder
	for i := 0; i < len(run); {
		matched := false
		for width := 3; width >= 1; width-- {
			if i+width > len(run) {
				continue
			}
			if symbol, ok := decodeMap[string(run[i:i+width])]; ok {
				decoded.WriteRune(symbol)
				i += width
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}

	if decoded.Len() == 0 {
		return "", false
	}
	return decoded.String(), true
}

// Strip удаляет все символы невидимого алфавита — для безопасного
// отображения и хранения человекочитаемого текста сообщения.
func Strip(text string) string {
	return strings.Map(func(r rune) rune {
		if r == unitA || r == unitB || r == unitC || r == bom {
			return -1
		}
		return r
	}, text)
}

// Contains сообщает, присутствует ли в тексте невидимый токен.
func Contains(text string) bool {
	return strings.ContainsAny(text, "​‌‍")
}
