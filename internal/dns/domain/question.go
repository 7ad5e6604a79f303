package domain

import "fmt"

// Question is a single entry from a message's question section. Update
// messages reuse the section as the zone section, with Type SOA.
type Question struct {
	Name  Name
	Type  RRType
	Class RRClass
}

func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, q.Class, q.Type)
}
