package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
)

func TestValidate_AnchoredQuery(t *testing.T) {
	q := &SelectQuery{
		Vars:  []string{"cited"},
		Where: Group{Elements: []Pattern{TriplePattern{Subject: br1, Predicate: cites, Object: Variable("cited")}}},
		Limit: NoLimit,
	}

	result := Validate(q)

	assert.True(t, result.Answerable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_NoAnchor(t *testing.T) {
	q := &SelectQuery{
		Where: Group{Elements: []Pattern{TriplePattern{Subject: Variable("s"), Predicate: cites, Object: Variable("o")}}},
		Limit: NoLimit,
	}

	result := Validate(q)

	assert.False(t, result.Answerable)
}

func TestValidate_Warnings(t *testing.T) {
	q := &SelectQuery{
		Vars: []string{"cited", "missing"},
		Where: Group{Elements: []Pattern{
			TriplePattern{Subject: br1, Predicate: Const(ir.Literal("p")), Object: Variable("cited")},
			Optional{Group: Group{Elements: []Pattern{
				Optional{Group: Group{Elements: []Pattern{
					TriplePattern{Subject: Variable("cited"), Predicate: cites, Object: Variable("x")},
				}}},
			}}},
		}},
		Limit: 0,
	}

	result := Validate(q)

	require.Len(t, result.Warnings, 4)
	assert.Contains(t, result.Warnings[0], "LIMIT 0")
	assert.Contains(t, result.Warnings[1], "literal in predicate position")
	assert.Contains(t, result.Warnings[2], "?missing")
	assert.Contains(t, result.Warnings[3], "only OPTIONAL")
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.Answerable)
	assert.Equal(t, []string{"nil query"}, result.Warnings)
}
