package localdb

import "strings"

// Vercmp compares two pacman version strings of the form
// [epoch:]version[-release] and returns -1, 0 or 1.
//
// Epochs compare first and default to 0. The release is only compared when
// both sides carry one, so "1.0" and "1.0-3" are equal.
func Vercmp(a, b string) int {
	if a == b {
		return 0
	}
	ea, va, ra := parseEVR(a)
	eb, vb, rb := parseEVR(b)

	if c := rpmvercmp(ea, eb); c != 0 {
		return c
	}
	if c := rpmvercmp(va, vb); c != 0 {
		return c
	}
	if ra != "" && rb != "" {
		return rpmvercmp(ra, rb)
	}
	return 0
}

func parseEVR(s string) (epoch, version, release string) {
	epoch = "0"
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == ':' {
		if i > 0 {
			epoch = s[:i]
		}
		s = s[i+1:]
	}
	version = s
	if j := strings.LastIndexByte(s, '-'); j >= 0 {
		version, release = s[:j], s[j+1:]
	}
	return epoch, version, release
}

// rpmvercmp compares alternating runs of digits and letters. Numeric runs
// compare by value and beat alphabetic ones; a trailing alphabetic run marks
// a pre-release ("1.0a" < "1.0").
func rpmvercmp(a, b string) int {
	if a == b {
		return 0
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		si, sj := i, j
		for i < len(a) && !isAlnum(a[i]) {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) {
			j++
		}
		if i >= len(a) || j >= len(b) {
			break
		}
		if i-si != j-sj {
			if i-si < j-sj {
				return -1
			}
			return 1
		}

		isNum := isDigit(a[i])
		ei, ej := i, j
		if isNum {
			for ei < len(a) && isDigit(a[ei]) {
				ei++
			}
			for ej < len(b) && isDigit(b[ej]) {
				ej++
			}
		} else {
			for ei < len(a) && isAlpha(a[ei]) {
				ei++
			}
			for ej < len(b) && isAlpha(b[ej]) {
				ej++
			}
		}

		// Segments of different types: numeric is newer.
		if ej == j {
			if isNum {
				return 1
			}
			return -1
		}

		segA, segB := a[i:ei], b[j:ej]
		if isNum {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) > len(segB) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			return c
		}
		i, j = ei, ej
	}

	restA, restB := a[i:], b[j:]
	if restA == "" && restB == "" {
		return 0
	}
	if (restA == "" && !isAlpha(restB[0])) || (restA != "" && isAlpha(restA[0])) {
		return -1
	}
	return 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
