// Package pool
// Author: momentics <momentics@gmail.com>
//
// Fixed-size byte buffer pooling for the reactor read path. One buffer
// is borrowed per readiness event and returned after the protocol has
// seen the data, so steady-state reads allocate nothing.
package pool
