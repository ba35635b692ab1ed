package resonance

import "time"

// InputsFromBirthday derives seeds for callers without explicit digits:
// A is the digit sum of the birth date, B the digit sum of the reading date
// and C the reading hour, all in UTC.
func InputsFromBirthday(birth, on time.Time) Inputs {
	birth = birth.UTC()
	on = on.UTC()
	return Inputs{
		A:  dateDigitSum(birth),
		B:  dateDigitSum(on),
		C:  on.Hour(),
		At: on,
	}
}

// dateDigitSum adds the decimal digits of YYYYMMDD.
func dateDigitSum(t time.Time) int {
	return digitSum(t.Year()) + digitSum(int(t.Month())) + digitSum(t.Day())
}

func digitSum(n int) int {
	n = abs(n)
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}
