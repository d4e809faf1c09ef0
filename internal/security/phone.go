package security

// PhoneVariations возвращает варианты записи номера для поиска по базе:
// полный номер, национальную часть и номер с кодом страны. Исторические
// записи могли сохранить телефон в любом из этих форматов.
func PhoneVariations(phone string) []string {
	seen := make(map[string]struct{}, 4)
	variations := make([]string, 0, 4)

	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variations = append(variations, v)
	}

	add(phone)
	if len(phone) > 11 {
		add(phone[len(phone)-11:])
	}
	if len(phone) > 10 {
		add(phone[len(phone)-10:])
		add(DefaultCountryCode + phone[len(phone)-10:])
	}

	return variations
}
