package qhd

// IndicatorPrefix marks a leaf as a quality indicator.
const IndicatorPrefix = "IND_"

// RawBody is an unmarked document body. Plain map literals convert to it
// implicitly; an IndicatorBody does not.
type RawBody map[string]any

// IndicatorBody is a body whose leaf keys carry IndicatorPrefix.
type IndicatorBody map[string]any

// MarkIndicators returns a copy of body in which every non-object value is
// stored under IndicatorPrefix+key. Nested objects keep their key and are
// transformed recursively; a nested IndicatorBody is already marked and is
// kept as is. Null leaves keep their key. The input is not modified.
func MarkIndicators(body RawBody) IndicatorBody {
	return IndicatorBody(mark(body))
}

func mark(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case IndicatorBody:
			out[k] = x
		case RawBody:
			out[k] = mark(x)
		case map[string]any:
			out[k] = mark(x)
		case nil:
			out[k] = nil
		default:
			out[IndicatorPrefix+k] = v
		}
	}
	return out
}
