package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const raw = `age,income,subscribed,id
35,50000,yes,1
22,18000,no,2
35,50000,yes,1
41,,yes,4
29,31000,NA,5
`

func parse(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestParse(t *testing.T) {
	tbl := parse(t, raw)
	assert.Equal(t, []string{"age", "income", "subscribed", "id"}, tbl.Header)
	assert.Equal(t, 5, tbl.Len())
	assert.Equal(t, 2, tbl.NullCount())
	assert.Equal(t, 1, tbl.DuplicateCount())
}

func TestParsePadsShortRows(t *testing.T) {
	tbl := parse(t, "a,b,c\n1,2\n")
	assert.Equal(t, []string{"1", "2", ""}, tbl.Rows[0])
	assert.Equal(t, 1, tbl.NullCount())
}

func TestParseRejectsLongRows(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	out := parse(t, raw).DropDuplicates()
	require.Equal(t, 4, out.Len())
	assert.Equal(t, []string{"35", "50000", "yes", "1"}, out.Rows[0])
	assert.Equal(t, []string{"41", "", "yes", "4"}, out.Rows[2])
}

func TestDuplicateNullsCompareEqual(t *testing.T) {
	tbl := parse(t, "a,b\n1,\n1,NA\n")
	assert.Equal(t, 1, tbl.DuplicateCount())
}

func TestDropNulls(t *testing.T) {
	out := parse(t, raw).DropNulls()
	require.Equal(t, 3, out.Len())
	for _, row := range out.Rows {
		for _, c := range row {
			assert.False(t, IsNull(c))
		}
	}
}

func TestCleaningDoesNotMutateInput(t *testing.T) {
	tbl := parse(t, raw)
	_ = tbl.DropDuplicates().DropNulls()
	assert.Equal(t, 5, tbl.Len())
}

func TestWriteCSVIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "nested", "a.csv")
	b := filepath.Join(dir, "nested", "b.csv")

	require.NoError(t, parse(t, raw).DropDuplicates().DropNulls().WriteCSV(a))
	require.NoError(t, parse(t, raw).DropDuplicates().DropNulls().WriteCSV(b))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, "age,income,subscribed,id\n35,50000,yes,1\n22,18000,no,2\n", string(da))
}

func TestReadCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	tbl, err := ReadCSV(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.Write(&buf))
	assert.Equal(t, raw, buf.String())
}

func TestReadCSVMissing(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFrame(t *testing.T) {
	tbl := parse(t, "age,income,subscribed,id\n30,1000,yes,a\n40,2000,no,b\n")
	f, err := tbl.Frame("subscribed", "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "income"}, f.Features)
	assert.Equal(t, []string{"yes", "no"}, f.Y)
	assert.Equal(t, 2000.0, f.X.At(1, 1))
}

func TestFrameRejectsNonNumeric(t *testing.T) {
	tbl := parse(t, "age,income,subscribed,id\nold,1000,yes,a\n")
	_, err := tbl.Frame("subscribed", "id")
	assert.Error(t, err)
}

func TestTrainTestSplitIsReproducible(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("age,income,subscribed,id\n")
	for i := 0; i < 10; i++ {
		sb.WriteString(strings.Join([]string{strconv.Itoa(20 + i), strconv.Itoa(1000 * i), "no", strconv.Itoa(i)}, ","))
		sb.WriteString("\n")
	}
	f, err := parse(t, sb.String()).Frame("subscribed", "id")
	require.NoError(t, err)

	train1, test1, err := f.TrainTestSplit(0.2, 42)
	require.NoError(t, err)
	train2, test2, err := f.TrainTestSplit(0.2, 42)
	require.NoError(t, err)

	assert.Equal(t, 8, train1.Rows())
	assert.Equal(t, 2, test1.Rows())
	assert.Equal(t, train1.X.RawMatrix().Data, train2.X.RawMatrix().Data)
	assert.Equal(t, test1.X.RawMatrix().Data, test2.X.RawMatrix().Data)

	// partitions are disjoint and cover every row
	seen := map[float64]bool{}
	for _, p := range []*Frame{train1, test1} {
		for r := 0; r < p.Rows(); r++ {
			age := p.X.At(r, 0)
			assert.False(t, seen[age])
			seen[age] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestTrainTestSplitTooSmall(t *testing.T) {
	f, err := parse(t, "age,subscribed\n1,yes\n").Frame("subscribed")
	require.NoError(t, err)
	_, _, err = f.TrainTestSplit(0.2, 42)
	assert.Error(t, err)
}

