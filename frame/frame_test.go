package frame

import (
	"testing"

	"github.com/gigapi/draftpipe/model"
	"github.com/stretchr/testify/require"
)

func testScan() *Scan {
	return &Scan{
		View:   model.ViewDraft,
		From:   "raw",
		Fields: []string{"pick_number", "pick", "pack_card_Ornithopter"},
	}
}

func TestFrame_FromScan(t *testing.T) {
	f := FromScan(testScan())
	require.Equal(t, 3, f.Width())
	c, ok := f.Lookup("pack_card_Ornithopter")
	require.True(t, ok)
	require.Equal(t, `"pack_card_Ornithopter"`, c.SQL)
	_, ok = f.Lookup("missing")
	require.False(t, ok)
}

func TestFrame_SelectAndSQL(t *testing.T) {
	f := FromScan(testScan()).Select(Column{Name: "pick_num", SQL: `("pick_number" + 1)`})
	require.Equal(t, []string{"pick_num"}, f.Names())
	require.Equal(t, `SELECT ("pick_number" + 1) AS "pick_num" FROM raw`, f.SQL())

	filtered := f.Filter(`("pick_number" > 2)`)
	require.Equal(t, `SELECT ("pick_number" + 1) AS "pick_num" FROM raw WHERE ("pick_number" > 2)`, filtered.SQL())
	require.Equal(t, `SELECT ("pick_number" + 1) AS "pick_num" FROM raw`, f.SQL(), "filter does not mutate the source frame")
}

func TestHConcat(t *testing.T) {
	raw := FromScan(testScan())
	a := raw.Select(Column{Name: "pick_num", SQL: `("pick_number" + 1)`})
	b := raw.Select(Column{Name: "pick", SQL: `"pick"`}, Column{Name: "pick_num", SQL: `("pick_number" + 1)`})

	res, err := HConcat(a, b)
	require.NoError(t, err)
	require.Equal(t, []string{"pick_num", "pick"}, res.Names())
	require.Equal(t, `SELECT ("pick_number" + 1) AS "pick_num", "pick" AS "pick" FROM raw`, res.SQL())

	t.Run("conflicting definitions", func(t *testing.T) {
		c := raw.Select(Column{Name: "pick_num", SQL: `"pick_number"`})
		_, err := HConcat(a, c)
		require.Error(t, err)
	})

	t.Run("different scans", func(t *testing.T) {
		other := FromScan(testScan())
		_, err := HConcat(a, other)
		require.Error(t, err)
	})

	t.Run("different filters", func(t *testing.T) {
		_, err := HConcat(a, b.Filter("TRUE"))
		require.Error(t, err)
	})
}
