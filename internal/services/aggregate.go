package services

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
)

// group is one row of a group-by result: the key and one aggregate per
// requested column, in request order.
type group struct {
	Key    string
	Values []float64
}

// aggregate groups df by key and applies typ to every column in cols. Groups
// come back in key order (see compareKeys), so repeated calls on the same
// frame are identical.
func aggregate(df dataframe.DataFrame, key string, typ dataframe.AggregationType, cols ...string) ([]group, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	if df.Nrow() == 0 {
		return []group{}, nil
	}

	typs := make([]dataframe.AggregationType, len(cols))
	for i := range typs {
		typs[i] = typ
	}

	out := df.GroupBy(key).Aggregation(typs, cols)
	if out.Err != nil {
		return nil, fmt.Errorf("aggregate %s by %s: %w", strings.Join(cols, ","), key, out.Err)
	}

	keys := out.Col(key).Records()
	groups := make([]group, out.Nrow())
	for i := range groups {
		groups[i] = group{Key: normalizeKey(keys[i]), Values: make([]float64, len(cols))}
	}

	names := out.Names()
	for j, col := range cols {
		name, ok := aggregatedColumn(names, key, col)
		if !ok {
			return nil, fmt.Errorf("aggregate %s by %s: result column for %s not found in %v", strings.Join(cols, ","), key, col, names)
		}
		for i, v := range out.Col(name).Float() {
			groups[i].Values[j] = v
		}
	}

	slices.SortStableFunc(groups, func(a, b group) int {
		return compareKeys(a.Key, b.Key)
	})
	return groups, nil
}

// aggregatedColumn finds the output column gota produced for col, which is
// named "<col>_<AGGREGATION>".
func aggregatedColumn(names []string, key, col string) (string, bool) {
	for _, name := range names {
		if name != key && strings.HasPrefix(name, col+"_") {
			return name, true
		}
	}
	return "", false
}

// normalizeKey renders integral numeric keys without a fractional part, so
// an Int year column reads the same whichever type gota gives the result.
func normalizeKey(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}

var monthOrder = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

func monthIndex(s string) (int, bool) {
	m, ok := monthOrder[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// compareKeys orders numbers numerically, month names by calendar, and
// everything else lexically after them.
func compareKeys(a, b string) int {
	af, aErr := strconv.ParseFloat(a, 64)
	bf, bErr := strconv.ParseFloat(b, 64)
	if aErr == nil && bErr == nil {
		return cmp.Compare(af, bf)
	}

	am, aMonth := monthIndex(a)
	bm, bMonth := monthIndex(b)
	switch {
	case aMonth && bMonth:
		return cmp.Compare(am, bm)
	case aMonth:
		return -1
	case bMonth:
		return 1
	}

	return strings.Compare(a, b)
}
