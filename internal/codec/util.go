package codec

import "strconv"

// parsePositiveFloat parses s as a float64 and rejects non-positive values,
// matching the "missing, non-positive, or non-numeric price fields are
// Ignored" decoding rule shared by every venue codec.
func parsePositiveFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
