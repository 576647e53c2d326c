package vxi11

// XDR (RFC 4506) messages, encoded field by field in declaration order.

// opaqueAuth an rpc credential or verifier.
type opaqueAuth struct {
	Flavor uint32
	Body   []byte
}

type callHeader struct {
	Xid     uint32
	MsgType uint32
	RPCVers uint32
	Prog    uint32
	Vers    uint32
	Proc    uint32
	Cred    opaqueAuth
	Verf    opaqueAuth
}

type replyHeader struct {
	Xid       uint32
	MsgType   uint32
	ReplyStat uint32
}

type acceptedReply struct {
	Verf       opaqueAuth
	AcceptStat uint32
}

// portmapper GETPORT argument
type mapping struct {
	Prog uint32
	Vers uint32
	Prot uint32
	Port uint32
}

type createLinkParms struct {
	ClientID    int32
	LockDevice  bool
	LockTimeout uint32
	Device      string
}

type createLinkResp struct {
	Error       int32
	Lid         int32
	AbortPort   uint32
	MaxRecvSize uint32
}

type deviceLink struct {
	Lid int32
}

type deviceWriteParms struct {
	Lid         int32
	IOTimeout   uint32
	LockTimeout uint32
	Flags       uint32
	Data        []byte
}

type deviceWriteResp struct {
	Error int32
	Size  uint32
}

type deviceReadParms struct {
	Lid         int32
	RequestSize uint32
	IOTimeout   uint32
	LockTimeout uint32
	Flags       uint32
	TermChar    int32
}

type deviceReadResp struct {
	Error  int32
	Reason uint32
	Data   []byte
}

type deviceGenericParms struct {
	Lid         int32
	Flags       uint32
	LockTimeout uint32
	IOTimeout   uint32
}

type deviceError struct {
	Error int32
}

type readSTBResp struct {
	Error int32
	STB   uint32
}
