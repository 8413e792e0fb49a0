package channel

// Call is an in-flight correlated request. Its reply is delivered on
// Events() in transport order, carrying ID() as request_id, at most once.
type Call struct {
	id   string
	conn *Conn
}

// ID is the correlation id sent with the request.
func (c *Call) ID() string { return c.id }

// Cancel abandons the request; a late reply is dropped by the Conn.
func (c *Call) Cancel() {
	c.conn.forget(c.id)
}
