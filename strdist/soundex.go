package strdist

// soundexCode maps a consonant to its Soundex digit class, or 0 for letters
// that carry no code (vowels, h, w, y).
func soundexCode(r rune) byte {
	switch r {
	case 'b', 'f', 'p', 'v':
		return '1'
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return '2'
	case 'd', 't':
		return '3'
	case 'l':
		return '4'
	case 'm', 'n':
		return '5'
	case 'r':
		return '6'
	default:
		return 0
	}
}

// Soundex returns the 4-character American Soundex code of s.
//
// The first letter is kept (upper-cased), remaining consonants map to digit
// classes, and runs of the same digit collapse to one. Vowels and h/w/y emit
// nothing but act as separators: a consonant repeating its class after a
// separator is encoded again. The code is padded with zeros or truncated to 4
// characters. Input with no letters yields "0000".
func Soundex(s string) string {
	var first rune
	var rest []rune
	for _, r := range s {
		lower := toLowerASCII(r)
		if lower < 'a' || lower > 'z' {
			continue
		}
		if first == 0 {
			first = lower
			continue
		}
		rest = append(rest, lower)
	}
	if first == 0 {
		return "0000"
	}

	code := make([]byte, 0, 4)
	code = append(code, byte(first-'a'+'A'))

	lastCode := soundexCode(first)
	for _, r := range rest {
		c := soundexCode(r)
		if c == 0 {
			// Separator: the next consonant is encoded even if it
			// repeats the previous digit class.
			lastCode = 0
			continue
		}
		if c != lastCode {
			code = append(code, c)
			if len(code) == 4 {
				break
			}
		}
		lastCode = c
	}

	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
