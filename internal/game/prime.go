package game

import "fmt"

// IsPrime reports whether n is prime by trial division.
// n <= 1 is never prime.
func IsPrime(n int) bool {
	if n <= 1 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// FormatElapsed renders seconds as zero-padded HH:MM:SS.
func FormatElapsed(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec/60%60, sec%60)
}
