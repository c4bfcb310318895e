package runner

import (
	"fmt"
	"strconv"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// Checks performed by CrossCheck.
const (
	CheckRowCount = "row_count"
	CheckDigest   = "rows_digest"
)

// Discrepancy is a strategy whose result disagrees with the majority.
type Discrepancy struct {
	Strategy string
	Check    string
	Got      string
	Want     string
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: %s %s, majority %s", d.Strategy, d.Check, d.Got, d.Want)
}

// CrossCheck compares row counts and row digests across strategies that
// completed at least one trial. Every strategy looked up the same ids, so
// they must all agree; the majority value is taken as correct, ties going
// to the value seen first.
func CrossCheck(summaries []types.Summary) []Discrepancy {
	var eligible []types.Summary
	for _, s := range summaries {
		if s.CompletedRuns > 0 {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) < 2 {
		return nil
	}

	counts := make([]string, len(eligible))
	digests := make([]string, len(eligible))
	for i, s := range eligible {
		counts[i] = strconv.Itoa(s.RowsReturned)
		digests[i] = s.RowsDigest
	}

	wantCount := majority(counts)
	wantDigest := majority(digests)

	var out []Discrepancy
	for i, s := range eligible {
		if counts[i] != wantCount {
			out = append(out, Discrepancy{Strategy: s.Name, Check: CheckRowCount, Got: counts[i], Want: wantCount})
			continue
		}
		if digests[i] != wantDigest {
			out = append(out, Discrepancy{Strategy: s.Name, Check: CheckDigest, Got: short(digests[i]), Want: short(wantDigest)})
		}
	}
	return out
}

func majority(values []string) string {
	freq := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if freq[v] == 0 {
			order = append(order, v)
		}
		freq[v]++
	}
	best := order[0]
	for _, v := range order[1:] {
		if freq[v] > freq[best] {
			best = v
		}
	}
	return best
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
