package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelimited(t *testing.T) {
	t.Run("pipe separated with header", func(t *testing.T) {
		batch, err := ParseDelimited("cnb-2022", "Datum|1 EUR|1 USD\n03.01.2022|24,860|21,951\n", ParseOptions{Delimiter: '|'})
		require.NoError(t, err)
		require.Len(t, batch.Records, 1)
		assert.Equal(t, "cnb-2022", batch.Source)

		rec := batch.Records[0]
		assert.Equal(t, []string{"Datum", "1 EUR", "1 USD"}, rec.Columns())
		v, ok := rec.Field("1 USD")
		assert.True(t, ok)
		assert.Equal(t, "21,951", v)
		_, ok = rec.Field("1 GBP")
		assert.False(t, ok)
	})

	t.Run("byte order mark is stripped", func(t *testing.T) {
		batch, err := ParseDelimited("blob", "\ufeffbike_id,manufacturer\n1,Trek\n", ParseOptions{Delimiter: ','})
		require.NoError(t, err)
		v, ok := batch.Records[0].Field("bike_id")
		assert.True(t, ok)
		assert.Equal(t, "1", v)
	})

	t.Run("short rows read missing columns as absent", func(t *testing.T) {
		batch, err := ParseDelimited("x", "a,b,c\n1,2\n", ParseOptions{Delimiter: ','})
		require.NoError(t, err)
		_, ok := batch.Records[0].Field("c")
		assert.False(t, ok)
	})

	t.Run("long rows fail when strict", func(t *testing.T) {
		_, err := ParseDelimited("x", "a,b\n1,2,3\n", ParseOptions{Delimiter: ','})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("long rows are skipped when lenient", func(t *testing.T) {
		batch, err := ParseDelimited("x", "a,b\n1,2,3\n4,5\n", ParseOptions{Delimiter: ',', SkipBadLines: true})
		require.NoError(t, err)
		require.Len(t, batch.Records, 1)
		assert.Equal(t, 1, batch.Skipped)
		assert.Equal(t, []string{"4", "5"}, batch.Records[0].Values)
	})

	t.Run("reheader switches column layout", func(t *testing.T) {
		text := "Datum|1 AUD|1 HRK\n03.01.2022|16,0|3,3\nDatum|1 AUD|1 ISK\n02.02.2022|15,9|0,17\n"
		batch, err := ParseDelimited("cnb", text, ParseOptions{Delimiter: '|', Reheader: true})
		require.NoError(t, err)
		require.Len(t, batch.Records, 2)

		v, ok := batch.Records[1].Field("1 ISK")
		assert.True(t, ok)
		assert.Equal(t, "0,17", v)
		_, ok = batch.Records[1].Field("1 HRK")
		assert.False(t, ok)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := ParseDelimited("x", "", ParseOptions{})
		require.Error(t, err)
	})
}

func TestMergeBatches_PreservesOrder(t *testing.T) {
	a, err := ParseDelimited("2022", "Datum|1 EUR\n03.01.2022|24,8\n", ParseOptions{Delimiter: '|'})
	require.NoError(t, err)
	b, err := ParseDelimited("2023", "Datum|1 EUR\n02.01.2023|24,1\n03.01.2023|24,2\n", ParseOptions{Delimiter: '|'})
	require.NoError(t, err)

	merged := MergeBatches(a, b)
	require.Len(t, merged, 3)
	got := make([]string, len(merged))
	for i, r := range merged {
		got[i], _ = r.Field("Datum")
	}
	assert.Equal(t, []string{"03.01.2022", "02.01.2023", "03.01.2023"}, got)
}
