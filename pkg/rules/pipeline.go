package rules

import "github.com/Sumatoshi-tech/prescan/pkg/model"

type checkFunc func(item *model.Item, c *Context, out []model.Issue) []model.Issue

type stage struct {
	check Check
	dirs  bool
	fn    checkFunc
}

// stages run in this order. Name conflicts are evaluated by ConflictIndex and
// slotted in before the hidden/system stage.
var stages = []stage{
	{CheckPathLength, true, checkPathLength},
	{CheckInvalidCharacters, true, checkInvalidCharacters},
	{CheckReservedNames, true, checkReservedNames},
	{CheckBlockedFileTypes, false, checkBlockedFileTypes},
	{CheckProblematicFiles, false, checkProblematicFiles},
	{CheckFileSize, false, checkFileSize},
}

// Pipeline runs the stateless checks for one item.
type Pipeline struct {
	ctx *Context
}

// NewPipeline creates a pipeline over a read-only context.
func NewPipeline(ctx *Context) *Pipeline {
	return &Pipeline{ctx: ctx}
}

// Context returns the pipeline's context.
func (p *Pipeline) Context() *Context {
	return p.ctx
}

// Evaluate returns every issue for item in check order. It is safe for
// concurrent use.
func (p *Pipeline) Evaluate(item *model.Item) []model.Issue {
	return p.EvaluateWith(item, nil)
}

// EvaluateWith is Evaluate with a name-conflict issue, already computed by a
// ConflictIndex, placed at its position in check order.
func (p *Pipeline) EvaluateWith(item *model.Item, conflict *model.Issue) []model.Issue {
	var out []model.Issue

	for i := range stages {
		s := &stages[i]
		if item.IsDir && !s.dirs {
			continue
		}

		if p.ctx.Enabled(s.check) {
			out = s.fn(item, p.ctx, out)
		}
	}

	if conflict != nil && p.ctx.Enabled(CheckNameConflicts) {
		out = append(out, *conflict)
	}

	if p.ctx.Enabled(CheckHiddenFiles) {
		out = checkHidden(item, p.ctx, out)
	}

	return out
}
