package admin

import "maps"

const draft04 = "http://json-schema.org/draft-04/schema#"

func stringProp(description string, maxLength int) map[string]any {
	return map[string]any{
		"description": description,
		"type":        "string",
		"minLength":   1,
		"maxLength":   maxLength,
	}
}

func usernameProp() map[string]any {
	p := stringProp("The username of user", 63)
	p["pattern"] = `^\w+$`
	return p
}

func passwordProp(strict bool) map[string]any {
	p := stringProp("The password of user", 63)
	if strict {
		p["format"] = "password"
	}
	return p
}

func userCommonProps() map[string]any {
	telephone := stringProp("The telephone of user", 31)
	telephone["pattern"] = `^[+]?[0-9][0-9 -]{4,29}$`
	email := stringProp("The email of user", 63)
	email["format"] = "email"
	return map[string]any{
		"first_name": stringProp("The first name of user", 31),
		"last_name":  stringProp("The last name of user", 15),
		"company":    stringProp("The company of user", 63),
		"department": stringProp("The department of user", 63),
		"telephone":  telephone,
		"email":      email,
		"address":    stringProp("The address of user", 127),
		"group_id": map[string]any{
			"description": "The group id of user",
			"type":        "integer",
			"minimum":     1,
		},
		"admin":   map[string]any{"description": "Whether the user is admin", "type": "boolean"},
		"system":  map[string]any{"description": "Whether the user is a system account", "type": "boolean"},
		"enabled": map[string]any{"description": "Whether the user is enabled", "type": "boolean"},
	}
}

func loginSchema() map[string]any {
	return map[string]any{
		"$schema":     draft04,
		"title":       "Login validator schema",
		"description": "Validator for login data",
		"type":        "object",
		"properties": map[string]any{
			"username": usernameProp(),
			"password": passwordProp(false),
		},
		"additionalProperties": false,
		"required":             []any{"username", "password"},
	}
}

func userCreateSchema() map[string]any {
	props := userCommonProps()
	maps.Copy(props, map[string]any{
		"username": usernameProp(),
		"password": passwordProp(true),
	})
	return map[string]any{
		"$schema":              draft04,
		"title":                "User create validator schema",
		"type":                 "object",
		"properties":           props,
		"required":             []any{"username", "password"},
		"additionalProperties": false,
	}
}

func userUpdateSchema() map[string]any {
	return map[string]any{
		"$schema":              draft04,
		"title":                "User update validator schema",
		"type":                 "object",
		"properties":           userCommonProps(),
		"minProperties":        1,
		"additionalProperties": false,
	}
}

func groupSchema() map[string]any {
	return map[string]any{
		"$schema": draft04,
		"title":   "Group validator schema",
		"type":    "object",
		"properties": map[string]any{
			"name": stringProp("The name of group", 63),
		},
		"required":             []any{"name"},
		"additionalProperties": false,
	}
}
