package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

type memoryStore struct {
	mu     sync.Mutex
	lines  []models.CartLine
	saves  int
	clears int
}

func (m *memoryStore) Save(_ context.Context, lines []models.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append([]models.CartLine(nil), lines...)
	m.saves++
}

func (m *memoryStore) Load(context.Context) []models.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CartLine{}, m.lines...)
}

func (m *memoryStore) Clear(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
	m.clears++
}

var (
	freeFire = models.Product{ID: 1, Nombre: "Free Fire", Categoria: models.CategoryGames, Imagen: "ff.png", Paquetes: []models.Package{
		{ID: "1", Nombre: "100 diamantes", Precio: decimal.RequireFromString("1.50")},
		{ID: "2", Nombre: "520 diamantes", Precio: decimal.RequireFromString("6.99")},
	}}
	steam = models.Product{ID: 2, Nombre: "Steam", Categoria: models.CategoryGiftCards, Paquetes: []models.Package{
		{ID: "20", Nombre: "$20", Precio: decimal.RequireFromString("20")},
	}}
)

func newTestEngine(t *testing.T) (*Engine, *memoryStore) {
	store := &memoryStore{}
	engine := NewEngine(store, zaptest.NewLogger(t))
	tick := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return tick }
	return engine, store
}

func TestAddOrMergeLine_SameKeyMerges(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	outcome, _, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "998877")
	require.NoError(t, err)
	assert.Equal(t, Added, outcome)

	outcome, line, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], " 998877 ")
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)
	assert.Equal(t, 2, line.Cantidad)

	lines := engine.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Cantidad)
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, 2, store.Load(ctx)[0].Cantidad)
}

func TestAddOrMergeLine_DifferentKeysAreDistinctLines(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "111")
	require.NoError(t, err)
	_, _, err = engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "222")
	require.NoError(t, err)
	_, _, err = engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[1], "111")
	require.NoError(t, err)

	lines := engine.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "222", lines[1].UsuarioID, "insertion order is kept")
	assert.NotEqual(t, lines[0].ID, lines[1].ID, "ids stay unique within one millisecond")
	assert.NotEqual(t, lines[1].ID, lines[2].ID)
}

func TestAddOrMergeLine_Validation(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.AddOrMergeLine(ctx, freeFire, nil, "111")
	var ve global.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "paquete", ve.Field)

	_, _, err = engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "  ")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "usuario_id", ve.Field)

	outcome, _, err := engine.AddOrMergeLine(ctx, steam, &steam.Paquetes[0], "")
	require.NoError(t, err, "gift cards need no player id")
	assert.Equal(t, Added, outcome)
	assert.Equal(t, 1, store.saves)
}

func TestChangeQuantity(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	_, line, err := engine.AddOrMergeLine(ctx, steam, &steam.Paquetes[0], "")
	require.NoError(t, err)

	change, ok := engine.ChangeQuantity(ctx, line.ID, 2)
	require.True(t, ok)
	assert.Equal(t, 3, change.Line.Cantidad)
	assert.False(t, change.Removed)

	change, ok = engine.ChangeQuantity(ctx, line.ID, -3)
	require.True(t, ok)
	assert.True(t, change.Removed)
	assert.True(t, engine.IsEmpty())
	assert.Empty(t, store.Load(ctx))
}

func TestChangeQuantity_UnknownIDIsNoop(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	_, _, err := engine.AddOrMergeLine(ctx, steam, &steam.Paquetes[0], "")
	require.NoError(t, err)
	saves := store.saves

	assert.NotPanics(t, func() {
		_, ok := engine.ChangeQuantity(ctx, 42, 1)
		assert.False(t, ok)
		_, ok = engine.RemoveLine(ctx, 42)
		assert.False(t, ok)
	})
	assert.Equal(t, saves, store.saves)
	assert.Equal(t, 1, engine.Count())
}

func TestRemoveLineAndMergeAgain(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, line, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "111")
	require.NoError(t, err)

	removed, ok := engine.RemoveLine(ctx, line.ID)
	require.True(t, ok)
	assert.Equal(t, "100 diamantes", removed.PaqueteNombre)

	outcome, _, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "111")
	require.NoError(t, err)
	assert.Equal(t, Added, outcome, "removed key no longer merges")
}

func TestTotalAndCount(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, _, _ = engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "111")
	_, _, _ = engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "111")
	_, _, _ = engine.AddOrMergeLine(ctx, steam, &steam.Paquetes[0], "")

	assert.Equal(t, "23.00", engine.Total().StringFixed(2))
	assert.Equal(t, 3, engine.Count())
}

func TestClear(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	var counts []int
	engine.OnChange(func(count int) { counts = append(counts, count) })

	_, _, _ = engine.AddOrMergeLine(ctx, steam, &steam.Paquetes[0], "")
	engine.Clear(ctx)

	assert.True(t, engine.IsEmpty())
	assert.Equal(t, 1, store.clears)
	assert.Empty(t, store.Load(ctx))
	assert.Equal(t, []int{1, 0}, counts)
}

func TestLoad_RestoresAndMergesDuplicates(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	store.lines = []models.CartLine{
		{ID: 10, ProductoID: 1, PaqueteNombre: "100 diamantes", UsuarioID: "111", Precio: decimal.RequireFromString("1.5"), Cantidad: 1},
		{ID: 11, ProductoID: 1, PaqueteNombre: "100 diamantes", UsuarioID: "111", Precio: decimal.RequireFromString("1.5"), Cantidad: 2},
	}

	engine.Load(ctx)

	lines := engine.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Cantidad)

	outcome, _, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], "111")
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)
}

func TestAddOrMergeLine_IDsUniqueWithinSameMillisecond(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	seen := make(map[int64]bool)
	for _, player := range []string{"a", "b", "c", "d", "e"} {
		_, line, err := engine.AddOrMergeLine(ctx, freeFire, &freeFire.Paquetes[0], player)
		require.NoError(t, err)
		assert.False(t, seen[line.ID], "duplicate id %d", line.ID)
		seen[line.ID] = true
	}
	assert.Len(t, seen, 5)
}
