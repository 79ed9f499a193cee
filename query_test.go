package gqlrealtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireOperationNameOnMultiOpSingleOperation(t *testing.T) {
	err := requireOperationNameOnMultiOp(Request{Query: `query { viewer { id } }`})
	assert.NoError(t, err)
}

func TestRequireOperationNameOnMultiOpMultipleOperationsNoName(t *testing.T) {
	query := `
query GetViewer {
  viewer { id }
}

mutation UpdateViewer {
  updateViewer(id: 1) { id }
}
`
	err := requireOperationNameOnMultiOp(Request{Query: query})
	assert.Error(t, err)
}

func TestRequireOperationNameOnMultiOpMultipleOperationsWithName(t *testing.T) {
	query := `
query GetViewer {
  viewer { id }
}

mutation UpdateViewer {
  updateViewer(id: 1) { id }
}
`
	err := requireOperationNameOnMultiOp(Request{Query: query, OperationName: "GetViewer"})
	assert.NoError(t, err)
}

func TestCountTopLevelOperationsIgnoresNestedBraces(t *testing.T) {
	query := `
query A {
  viewer { id name }
}
subscription B {
  onMessage { id }
}
`
	assert.Equal(t, 2, countTopLevelOperations(query))
}
