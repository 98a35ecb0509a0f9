package analyze

// findDates tags date-like spans: ISO, US (M/D/YYYY), European
// (D.M.YYYY), quarter ("Q1 2024"), English month + year, and relative
// phrases ("last week", "next quarter", ...). The analyzer only tags the
// span; callers use it as a filter hint, never an absolute date.
func findDates(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(matches []string) {
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	add(pattern("date_iso").FindAllString(text, -1))
	add(pattern("date_us").FindAllString(text, -1))
	add(pattern("date_eu").FindAllString(text, -1))
	add(pattern("date_quarter").FindAllString(text, -1))
	add(pattern("date_month_yr").FindAllString(text, -1))
	add(pattern("date_relative").FindAllString(text, -1))

	return out
}
