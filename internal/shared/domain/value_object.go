package domain

// ValueObject is a concept defined entirely by its attributes.
type ValueObject interface {
	Equals(other ValueObject) bool
}
