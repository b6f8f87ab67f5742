package model

import (
	"strconv"
	"strings"

	"github.com/l3aro/go-undead/pkg/logic"
)

// DeadCodeBlock is a conditional block that no valid configuration selects.
type DeadCodeBlock struct {
	sourceFile        string
	filePC            logic.Formula
	startLine         int
	endLine           int
	presenceCondition logic.Formula
}

// NewDeadCodeBlock builds a result record. filePC and pc may be nil.
func NewDeadCodeBlock(sourceFile string, filePC logic.Formula, start, end int, pc logic.Formula) DeadCodeBlock {
	return DeadCodeBlock{
		sourceFile:        sourceFile,
		filePC:            filePC,
		startLine:         start,
		endLine:           end,
		presenceCondition: pc,
	}
}

// SourceFile returns the path of the file containing the block.
func (b DeadCodeBlock) SourceFile() string { return b.sourceFile }

// FilePresenceCondition returns the file's build condition, or nil.
func (b DeadCodeBlock) FilePresenceCondition() logic.Formula { return b.filePC }

// StartLine returns the first line of the block.
func (b DeadCodeBlock) StartLine() int { return b.startLine }

// EndLine returns the last line of the block, 0 if unknown.
func (b DeadCodeBlock) EndLine() int { return b.endLine }

// PresenceCondition returns the block's own presence condition, or nil.
func (b DeadCodeBlock) PresenceCondition() logic.Formula { return b.presenceCondition }

// DeadCodeHeader is the column header matching Row.
var DeadCodeHeader = []string{"Source File", "File PC", "Line Start", "Line End", "Presence Condition"}

// Row returns the record as table cells; absent values are empty strings.
func (b DeadCodeBlock) Row() []string {
	end := ""
	if b.endLine != 0 {
		end = strconv.Itoa(b.endLine)
	}
	return []string{
		b.sourceFile,
		formulaText(b.filePC),
		strconv.Itoa(b.startLine),
		end,
		formulaText(b.presenceCondition),
	}
}

// String renders path, file condition, start, end and presence condition
// separated by single spaces. Absent values leave their field empty, so the
// field count is fixed.
func (b DeadCodeBlock) String() string {
	var sb strings.Builder
	sb.WriteString(b.sourceFile)
	sb.WriteByte(' ')
	sb.WriteString(formulaText(b.filePC))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(b.startLine))
	sb.WriteByte(' ')
	if b.endLine != 0 {
		sb.WriteString(strconv.Itoa(b.endLine))
	}
	sb.WriteByte(' ')
	sb.WriteString(formulaText(b.presenceCondition))
	return sb.String()
}

func formulaText(f logic.Formula) string {
	if f == nil {
		return ""
	}
	return f.String()
}
