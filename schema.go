package dbman

// Schema is opaque table-definition metadata supplied by the caller's
// model layer. The manager only enumerates it to drive DDL; it never
// interprets how the tables were declared.
type Schema interface {
	Tables() []TableDef
}

// TableDef names one table and carries its column definition list, the
// text between the parentheses of a CREATE TABLE statement.
type TableDef struct {
	Name       string
	Definition string
}

// Tables is the simplest Schema: a literal, ordered list of tables.
// Declare dependencies before their dependents so DropAll can walk the
// list in reverse.
type Tables []TableDef

func (t Tables) Tables() []TableDef { return t }
