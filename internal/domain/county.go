package domain

// countyNames maps Trafikverket county numbers to county names. The
// enumeration is fixed at 21 entries; the gaps (2, 11, 15, 16) are historical
// codes that were merged into other counties and never reused.
var countyNames = map[int]string{
	1:  "Stockholms län",
	3:  "Uppsala län",
	4:  "Södermanlands län",
	5:  "Östergötlands län",
	6:  "Jönköpings län",
	7:  "Kronobergs län",
	8:  "Kalmar län",
	9:  "Gotlands län",
	10: "Blekinge län",
	12: "Skåne län",
	13: "Hallands län",
	14: "Västra Götalands län",
	17: "Värmlands län",
	18: "Örebro län",
	19: "Västmanlands län",
	20: "Dalarnas län",
	21: "Gävleborgs län",
	22: "Västernorrlands län",
	23: "Jämtlands län",
	24: "Västerbottens län",
	25: "Norrbottens län",
}

// CountyName resolves a county number to its name. Unknown numbers return
// ok=false; callers keep the number and leave the name null.
func CountyName(no int) (string, bool) {
	name, ok := countyNames[no]
	return name, ok
}
