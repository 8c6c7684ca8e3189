package schema

import (
	"github.com/asaidimu/go-restful/utils"
)

// Column mixins. Each returns a ModelOption so models compose them:
//
//	schema.NewModel("Article",
//		schema.IDAndTimeColumns(),
//		schema.UserColumns(),
//		schema.Field("title", schema.FieldTypeString, schema.Required()),
//	)

// IncrementalID adds an auto-increment integer primary key named "id".
func IncrementalID() ModelOption {
	return func(m *ModelDefinition) {
		m.IDField = "id"
		m.AddField(&FieldDefinition{Name: "id", Type: FieldTypeInteger, PrimaryKey: true, AutoIncrement: true})
	}
}

// UUIDID adds a text primary key named "id" filled with a random UUID.
func UUIDID(withHyphen bool) ModelOption {
	length := 32
	if withHyphen {
		length = 36
	}
	return func(m *ModelDefinition) {
		m.IDField = "id"
		m.AddField(&FieldDefinition{
			Name:        "id",
			Type:        FieldTypeString,
			Length:      length,
			PrimaryKey:  true,
			DefaultFunc: func() any { return utils.UUIDString(withHyphen) },
		})
	}
}

func now() any { return utils.Now() }

// CreateTime adds "created_at", set on create.
func CreateTime() ModelOption {
	return Field("created_at", FieldTypeDateTime, DefaultFunc(now))
}

// UpdateTime adds "updated_at", set on create and refreshed on update.
func UpdateTime() ModelOption {
	return Field("updated_at", FieldTypeDateTime, DefaultFunc(now), OnUpdate(now))
}

// TimeColumns adds both timestamp columns.
func TimeColumns() ModelOption {
	return compose(CreateTime(), UpdateTime())
}

// IDAndTimeColumns adds an incremental id and both timestamp columns.
func IDAndTimeColumns() ModelOption {
	return compose(IncrementalID(), TimeColumns())
}

// UUIDAndTimeColumns adds a UUID id and both timestamp columns.
func UUIDAndTimeColumns(withHyphen bool) ModelOption {
	return compose(UUIDID(withHyphen), TimeColumns())
}

// CreateUser adds an indexed "created_by" column filled from the caller on create.
func CreateUser(typ FieldType) ModelOption {
	return compose(
		Field("created_by", typ, Indexed()),
		WithAutoFill("created_by", OperationCreate),
	)
}

// UpdateUser adds "updated_by", filled from the caller on create and update.
func UpdateUser(typ FieldType) ModelOption {
	return compose(
		Field("updated_by", typ),
		WithAutoFill("updated_by", OperationCreate, OperationUpdate),
	)
}

// UserColumns adds both caller columns with integer user ids.
func UserColumns() ModelOption {
	return compose(CreateUser(FieldTypeInteger), UpdateUser(FieldTypeInteger))
}

func compose(opts ...ModelOption) ModelOption {
	return func(m *ModelDefinition) {
		for _, opt := range opts {
			opt(m)
		}
	}
}
