package zone

import "fmt"

// queueid of chunk queues in a zone.
type queueid uint8

const (
	qempty queueid = iota
	qpartial
	qfull
	qva
	nqueues
)

func (q queueid) String() string {
	switch q {
	case qempty:
		return "empty"
	case qpartial:
		return "partial"
	case qfull:
		return "full"
	case qva:
		return "va"
	}
	return fmt.Sprintf("queue(%d)", uint8(q))
}

// pva reference to a chunk queue link, either null, or a queue head,
// or a chunk by the page number of its first page.
//
//	0           null
//	negative    queue head, -1 - queueid
//	positive    page number + 1
type pva int64

const pvanull = pva(0)

func pvaqueue(q queueid) pva {
	return pva(-1 - int64(q))
}

func pvapage(page int64) pva {
	if page < 0 {
		panicerr("invalid page %v for pva", page)
	}
	return pva(page + 1)
}

func (p pva) isnull() bool {
	return p == pvanull
}

func (p pva) isqueue() bool {
	return p < 0
}

func (p pva) ispage() bool {
	return p > 0
}

func (p pva) queue() queueid {
	if !p.isqueue() {
		panicerr("pva %v is not a queue", p)
	}
	return queueid(-1 - int64(p))
}

func (p pva) page() int64 {
	if !p.ispage() {
		panicerr("pva %v is not a page", p)
	}
	return int64(p) - 1
}

func (p pva) String() string {
	switch {
	case p.isnull():
		return "pva(null)"
	case p.isqueue():
		return fmt.Sprintf("pva(queue:%v)", p.queue())
	}
	return fmt.Sprintf("pva(page:%v)", p.page())
}

// qhead of a circular queue of chunks.
type qhead struct {
	next, prev pva
	count      int64
}
