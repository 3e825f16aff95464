package syncsim

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	for _, tc := range []struct {
		desc, in, out string
		endorsed      bool
		by            []string
	}{
		{desc: "plain", in: "#1f2e", out: "#1f2e"},
		{desc: "policy only", in: "#1f2e by 2@a", out: "#1f2e by {}/2@a", endorsed: true},
		{desc: "empty endorsers", in: "#add-A.3 by {}/2@a", out: "#add-A.3 by {}/2@a", endorsed: true},
		{
			desc:     "unsorted endorsers",
			in:       "#add-A.3 by {A.2,A.1,A.2}/2@a",
			out:      "#add-A.3 by {A.1,A.2}/2@a",
			endorsed: true,
			by:       []string{"A.1", "A.2"},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			r, err := ParseRecord(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.out, r.String())
			require.Equal(t, tc.endorsed, r.Endorsement != nil)
			if tc.by != nil {
				require.Equal(t, tc.by, r.Endorsement.By)
			}
			again, err := ParseRecord(r.String())
			require.NoError(t, err)
			require.True(t, again.Equal(r))
		})
	}

	_, err := ParseRecord("")
	require.ErrorIs(t, err, ErrRecord)
	_, err = ParseRecord("#x by {A.1/2@a")
	require.ErrorIs(t, err, ErrRecord)
}

func TestMerge(t *testing.T) {
	a1 := Eligibility{ID: "A.1", Groups: "ab", OwnParty: true}
	a4 := Eligibility{ID: "A.4", Groups: "", OwnParty: true}
	b1 := Eligibility{ID: "B.1", Groups: "ab", OwnParty: false}

	t.Run("new plain record", func(t *testing.T) {
		known := []Record{MustParseRecord("#b")}
		merged, result, changed := Merge(known, MustParseRecord("#a"), a1)
		require.True(t, changed)
		require.Equal(t, "#a", result.String())
		require.Equal(t, []string{"#a", "#b"}, texts(merged))
		require.Equal(t, []string{"#b"}, texts(known))
	})
	t.Run("duplicate", func(t *testing.T) {
		known := []Record{MustParseRecord("#a")}
		merged, _, changed := Merge(known, MustParseRecord("#a"), a1)
		require.False(t, changed)
		require.Equal(t, known, merged)
	})
	t.Run("self endorse", func(t *testing.T) {
		_, result, changed := Merge(nil, MustParseRecord("#a by 2@a"), a1)
		require.True(t, changed)
		require.Equal(t, "#a by {A.1}/2@a", result.String())
	})
	t.Run("not in group", func(t *testing.T) {
		_, result, _ := Merge(nil, MustParseRecord("#a by 2@a"), a4)
		require.Equal(t, "#a by {}/2@a", result.String())
	})
	t.Run("other party", func(t *testing.T) {
		_, result, _ := Merge(nil, MustParseRecord("#a by {A.2}/2@a"), b1)
		require.Equal(t, "#a by {A.2}/2@a", result.String())
	})
	t.Run("satisfied", func(t *testing.T) {
		_, result, _ := Merge(nil, MustParseRecord("#a by {A.2,A.3}/2@a"), a1)
		require.Equal(t, "#a by {A.2,A.3}/2@a", result.String())
	})
	t.Run("no self add", func(t *testing.T) {
		_, result, _ := Merge(nil, MustParseRecord("#add-A.1@ab by {}/2@a"), a1)
		require.Equal(t, "#add-A.1@ab by {}/2@a", result.String())
	})
	t.Run("union", func(t *testing.T) {
		known := []Record{MustParseRecord("#a by {A.2}/3@a"), MustParseRecord("#z")}
		merged, result, changed := Merge(known, MustParseRecord("#a by {A.3}/3@a"), b1)
		require.True(t, changed)
		require.Equal(t, "#a by {A.2,A.3}/3@a", result.String())
		require.Equal(t, []string{"#a by {A.2,A.3}/3@a", "#z"}, texts(merged))
	})
	t.Run("older version", func(t *testing.T) {
		known := []Record{MustParseRecord("#a by {A.2,A.3}/3@a")}
		merged, _, changed := Merge(known, MustParseRecord("#a by {A.2}/3@a"), b1)
		require.False(t, changed)
		require.Equal(t, known, merged)
	})
	t.Run("policy arrives later", func(t *testing.T) {
		known := []Record{MustParseRecord("#a")}
		_, result, changed := Merge(known, MustParseRecord("#a by {A.2}/3@a"), b1)
		require.True(t, changed)
		require.Equal(t, "#a by {A.2}/3@a", result.String())
	})
}

func texts(rs []Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.String())
	}
	return out
}

func mergeAll(self Eligibility, in []Record) []Record {
	var known []Record
	for _, r := range in {
		known, _, _ = Merge(known, r, self)
	}
	return known
}

func TestMerge_OrderInsensitive(t *testing.T) {
	ids := []string{"A.1", "A.2", "A.3", "A.4", "A.5", "A.6"}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		var (
			in    []Record
			union []string
		)
		for range 1 + rng.IntN(8) {
			var by []string
			for _, id := range ids {
				if rng.IntN(3) == 0 {
					by = append(by, id)
				}
			}
			union = append(union, by...)
			in = append(in, Record{Key: "#k", Endorsement: &Endorsement{By: by, N: 9, Group: 'a'}})
			in = append(in, Record{Key: "#plain"})
		}
		slices.Sort(union)
		union = slices.Compact(union)

		outsider := Eligibility{ID: "B.1", Groups: "a"}
		want := mergeAll(outsider, in)
		for range 5 {
			rng.Shuffle(len(in), func(i, j int) { in[i], in[j] = in[j], in[i] })
			got := mergeAll(outsider, in)
			require.Empty(t, cmp.Diff(want, got))
		}
		require.Len(t, want, 2)
		if len(union) == 0 {
			require.Empty(t, want[0].Endorsement.By)
		} else {
			require.Equal(t, union, want[0].Endorsement.By)
		}

		insider := Eligibility{ID: "A.9", Groups: "a", OwnParty: true}
		got := mergeAll(insider, in)
		require.Equal(t, normalize(append(slices.Clone(union), "A.9")), got[0].Endorsement.By)
		require.Empty(t, cmp.Diff(got, mergeAll(insider, append(slices.Clone(in), got...))))
	}
}

func TestMerge_Monotone(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	self := Eligibility{ID: "A.1", Groups: "a", OwnParty: true}
	var known []Record
	seen := 0
	for range 200 {
		var by []string
		for _, id := range []string{"A.2", "A.3", "A.4", "A.5"} {
			if rng.IntN(2) == 0 {
				by = append(by, id)
			}
		}
		known, _, _ = Merge(known, Record{Key: "#k", Endorsement: &Endorsement{By: by, N: 3, Group: 'a'}}, self)
		require.Len(t, known, 1)
		n := len(known[0].Endorsement.By)
		require.GreaterOrEqual(t, n, seen)
		seen = n
	}
}

func TestLacks(t *testing.T) {
	mine := []Record{MustParseRecord("#a"), MustParseRecord("#b by {A.1}/2@a")}
	theirs := []Record{MustParseRecord("#a"), MustParseRecord("#b by {A.1,A.2}/2@a"), MustParseRecord("#c")}
	require.Equal(t, []string{"#b by {A.1,A.2}/2@a", "#c"}, texts(Lacks(mine, theirs)))
	require.Empty(t, Lacks(theirs, theirs))
}
