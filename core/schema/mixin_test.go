package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDID(t *testing.T) {
	tests := []struct {
		name       string
		withHyphen bool
		length     int
	}{
		{"plain", false, 32},
		{"hyphenated", true, 36},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel("Token", UUIDID(tt.withHyphen))
			id := m.IDDefinition()
			require.NotNil(t, id)
			assert.True(t, id.PrimaryKey)
			assert.False(t, id.AutoIncrement)
			assert.Equal(t, tt.length, id.Length)
			require.NotNil(t, id.DefaultFunc)

			v, ok := id.DefaultFunc().(string)
			require.True(t, ok)
			assert.Len(t, v, tt.length)
			assert.NotEqual(t, v, id.DefaultFunc())
		})
	}
}

func TestTimeColumns(t *testing.T) {
	m := NewModel("Thing", IDAndTimeColumns())

	created := m.FindField("created_at")
	require.NotNil(t, created)
	assert.Equal(t, FieldTypeDateTime, created.Type)
	require.NotNil(t, created.DefaultFunc)
	assert.Nil(t, created.OnUpdate)
	_, ok := created.DefaultFunc().(time.Time)
	assert.True(t, ok)

	updated := m.FindField("updated_at")
	require.NotNil(t, updated)
	assert.NotNil(t, updated.DefaultFunc)
	assert.NotNil(t, updated.OnUpdate)
}

func TestUUIDAndTimeColumns(t *testing.T) {
	m := NewModel("Thing", UUIDAndTimeColumns(true))
	assert.Equal(t, []string{"id", "created_at", "updated_at"}, m.Columns)
	assert.Equal(t, 36, m.IDDefinition().Length)
}

func TestUserColumns(t *testing.T) {
	m := NewModel("Thing", IncrementalID(), UserColumns())

	createdBy := m.FindField("created_by")
	require.NotNil(t, createdBy)
	assert.True(t, createdBy.Index)
	assert.Equal(t, FieldTypeInteger, createdBy.Type)

	assert.Equal(t, []AutoFillField{
		{Field: "created_by", Operations: []Operation{OperationCreate}},
		{Field: "updated_by", Operations: []Operation{OperationCreate, OperationUpdate}},
	}, m.AutoFill)
	require.NoError(t, m.Check())
}

func TestCreateUser_StringIdentity(t *testing.T) {
	m := NewModel("Thing", IncrementalID(), CreateUser(FieldTypeString))
	assert.Equal(t, FieldTypeString, m.FindField("created_by").Type)
	assert.Equal(t, []string{"created_by"}, m.AutoFillFor(OperationCreate))
	assert.Empty(t, m.AutoFillFor(OperationUpdate))
}
