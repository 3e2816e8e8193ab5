package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func Excluded(column string) string {
	return fmt.Sprintf("%s = EXCLUDED.%s", column, column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder(flavor sqlbuilder.Flavor) *InsertBuilder {
	return &InsertBuilder{flavor.NewInsertBuilder()}
}

func (b *InsertBuilder) InsertInto(table string) *InsertBuilder {
	b.InsertBuilder.InsertInto(table)
	return b
}

func (b *InsertBuilder) Cols(col ...string) *InsertBuilder {
	b.InsertBuilder.Cols(col...)
	return b
}

func (b *InsertBuilder) Values(value ...any) *InsertBuilder {
	b.InsertBuilder.Values(value...)
	return b
}

// OnConflictUpdate turns the insert into an upsert that overwrites updateCols from the incoming row
func (b *InsertBuilder) OnConflictUpdate(conflictCols []string, updateCols ...string) *InsertBuilder {
	sets := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		sets = append(sets, Excluded(col))
	}
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictCols, ", "), strings.Join(sets, ", ")))
	return b
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

func NewSelectBuilder(flavor sqlbuilder.Flavor) *SelectBuilder {
	return &SelectBuilder{flavor.NewSelectBuilder()}
}
