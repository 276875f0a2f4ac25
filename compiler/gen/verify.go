package gen

import (
	"context"

	"github.com/syssam/daogen"
	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/load"
	"github.com/syssam/daogen/compiler/sqlparse"
)

// Verify prepares the statement of every planned method on db, so that a
// statement the database rejects (a missing table, a typo in a column) is
// reported before the code runs. Nothing is executed. The result holds the
// messages of each failing method, keyed by operation name.
//
// List markers are prepared with a single placeholder. Templates holding
// several statements are skipped, most drivers prepare one at a time.
func (g *Generator) Verify(ctx context.Context, db daogen.DB, plan *Plan) map[string]diag.Set {
	sink := g.sink()
	out := make(map[string]diag.Set)
	for _, f := range plan.Files {
		for _, m := range f.Impl.Methods {
			if m.Method.Kind == load.KindNone {
				continue
			}
			msgs := g.verify(ctx, db, m)
			if msgs.IsEmpty() {
				continue
			}
			out[m.Op] = msgs
			sink.Report(ctx, m.Op, msgs)
		}
	}
	return out
}

func (g *Generator) verify(ctx context.Context, db daogen.DB, m *MethodImpl) diag.Set {
	tpl, err := sqlparse.Parse(m.Method.SQL)
	if err != nil {
		// Already reported by Plan.
		return diag.Empty
	}
	if tpl.Statements() > 1 {
		return diag.Info(m.Method.Pos, m.Op+": statement not verified: it holds several statements")
	}
	stmt, err := db.PrepareContext(ctx, tpl.Native(g.cfg.Dialect.Placeholder))
	if err != nil {
		return diag.ErrorAt(m.Method.Pos, "%s: %v", m.Op, err)
	}
	if err := stmt.Close(); err != nil {
		return diag.ErrorAt(m.Method.Pos, "%s: close: %v", m.Op, err)
	}
	return diag.Empty
}
