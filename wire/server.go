package wire

import (
	"errors"
	"io"
	"net"

	"github.com/tliron/commonlog"

	"github.com/chazu/latebind/dispatch"
)

var log = commonlog.GetLogger("latebind.wire")

// Server exposes a dispatch.Collaborator to remote clients. Each connection
// is served by one goroutine; requests on a connection are answered in
// order, which matches the protocol's synchronous per-call model.
type Server struct {
	collab dispatch.Collaborator
}

// NewServer wraps a collaborator for serving.
func NewServer(c dispatch.Collaborator) *Server {
	return &Server{collab: c}
}

// Serve accepts connections until the listener closes. The listener's close
// error is returned; per-connection failures are logged and do not stop the
// server.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		log.Debugf("connection from %s", conn.RemoteAddr())
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		var req request
		if err := readFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Errorf("read from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		resp := s.handle(&req)
		if err := writeFrame(conn, resp); err != nil {
			log.Errorf("write to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) handle(req *request) *response {
	target := dispatch.Handle(req.Target)

	switch req.Op {
	case opResolve:
		member, err := s.collab.ResolveName(target, req.Name)
		if err != nil {
			return failure(err)
		}
		return &response{Member: int32(member)}

	case opInvoke:
		wargs, err := decodeArgs(req.Args)
		if err != nil {
			return failure(err)
		}
		result, err := s.collab.Invoke(target, dispatch.MemberID(req.Member), dispatch.CallKind(req.Kind), wargs)
		if err != nil {
			return failure(err)
		}
		encoded, err := encodeValue(result)
		if err != nil {
			// The counted reference an object result carries must not
			// strand on the server when the result cannot cross.
			if h, isObj := result.ObjectHandle(); isObj {
				s.collab.Release(h)
			}
			return failure(err)
		}
		return &response{Result: encoded}

	case opAddRef:
		s.collab.AddRef(target)
		return &response{}

	case opRelease:
		s.collab.Release(target)
		return &response{}

	default:
		return failure(&dispatch.InvocationError{Code: -1, Message: "unknown operation"})
	}
}

func failure(err error) *response {
	kind, code, msg := errToWire(err)
	return &response{Err: kind, Code: code, Message: msg}
}
