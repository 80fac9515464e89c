package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/service/db"
	"github.com/gigapi/draftpipe/utils/logger"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "DSK", "DSK_PremierDraft_draft.csv"),
		"expansion,pick,pick_number,pack_card_Shock\nDSK,Shock,0,1\n")
	writeFile(t, filepath.Join(root, "DSK", "DSK_card.csv"), "name,rarity\nShock,common\n")

	conn, err := db.ConnectDuckDB("", db.Options{})
	require.NoError(t, err)
	defer conn.Close()

	s := NewFileSource(conn, root, "PremierDraft", logger.New(false))

	scan, err := s.Scan(t.Context(), "DSK", model.ViewDraft)
	require.NoError(t, err)
	require.Equal(t, []string{"expansion", "pick", "pick_number", "pack_card_Shock"}, scan.Fields)
	require.Contains(t, scan.From, "read_csv(")

	_, err = s.Scan(t.Context(), "DSK", model.ViewGame)
	require.ErrorIs(t, err, model.ErrMissingSource)

	schemas, err := s.Schemas(t.Context(), "DSK")
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	require.Equal(t, []string{"name", "rarity"}, schemas[model.ViewCard])

	_, err = s.Schemas(t.Context(), "NOPE")
	require.ErrorIs(t, err, model.ErrMissingSource)

	_, err = s.Scan(t.Context(), "../etc", model.ViewDraft)
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestFileSource_Forget(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "DSK", "DSK_PremierDraft_game.csv")
	writeFile(t, path, "won,deck_Shock\ntrue,1\n")

	conn, err := db.ConnectDuckDB("", db.Options{})
	require.NoError(t, err)
	defer conn.Close()
	s := NewFileSource(conn, root, "PremierDraft", logger.New(false))

	scan, err := s.Scan(t.Context(), "DSK", model.ViewGame)
	require.NoError(t, err)
	require.Len(t, scan.Fields, 2)

	writeFile(t, path, "won,deck_Shock,deck_Ornithopter\ntrue,1,0\n")
	scan, err = s.Scan(t.Context(), "DSK", model.ViewGame)
	require.NoError(t, err)
	require.Len(t, scan.Fields, 2, "schema is memoized")

	s.Forget("DSK")
	scan, err = s.Scan(t.Context(), "DSK", model.ViewGame)
	require.NoError(t, err)
	require.Len(t, scan.Fields, 3)
}
