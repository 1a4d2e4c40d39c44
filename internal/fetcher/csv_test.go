package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectCSV(t *testing.T, input string, opts CSVOptions) ([][]string, error) {
	t.Helper()
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), opts)
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	return rows, <-errCh
}

func TestStreamCSV_WithHeader(t *testing.T) {
	headerCh := make(chan []string, 1)
	rows, err := collectCSV(t, "id,name\n1,alpha\n2,beta\n", CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "alpha"}, rows[0])
	assert.Equal(t, []string{"2", "beta"}, rows[1])
}

func TestStreamCSV_NoHeader(t *testing.T) {
	rows, err := collectCSV(t, "1,alpha\n2,beta\n", CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStreamCSV_TrimSpaceAndDelimiter(t *testing.T) {
	rows, err := collectCSV(t, " 1 ; alpha \n", CSVOptions{Delimiter: ';', TrimSpace: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "alpha"}, rows[0])
}

func TestStreamCSV_RaggedRowsTolerated(t *testing.T) {
	rows, err := collectCSV(t, "1,alpha\n2\n3,gamma,extra\n", CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 1)
	assert.Len(t, rows[2], 3)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	_, err := collectCSV(t, "a,\"unterminated\n", CSVOptions{})
	require.Error(t, err)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("1,a\n2,b\n"), CSVOptions{})
	for range rowCh {
	}
	require.Error(t, <-errCh)
}
