package auth

// Message numbers, RFC 4252 §6 / RFC 4253 §12.
const (
	msgDisconnect          = 1
	msgServiceRequest      = 5
	msgServiceAccept       = 6
	msgUserAuthRequest     = 50
	msgUserAuthFailure     = 51
	msgUserAuthSuccess     = 52
	msgUserAuthBanner      = 53
	msgUserAuthPubKeyOk    = 60
	msgUserAuthInfoRequest = 60 // same wire number as PubKeyOk, disambiguated by auth_method
	msgUserAuthInfoResp    = 61
)

// Disconnect reason codes this layer can emit, RFC 4253 §11.1.
const (
	ReasonServiceNotAvailable        = 7
	ReasonNoMoreAuthMethodsAvailable = 14
)

const serviceUserAuth = "ssh-userauth"
const serviceConnection = "ssh-connection"

type serviceRequestMsg struct {
	_       struct{} `sshtype:"5"`
	Service string
}

type serviceAcceptMsg struct {
	_       struct{} `sshtype:"6"`
	Service string
}

type disconnectMsg struct {
	_       struct{} `sshtype:"1"`
	Reason  uint32
	Message string
	Lang    string
}

// userAuthRequestMsg is the common prefix shared by every
// SSH_MSG_USERAUTH_REQUEST; method-specific fields are carried
// raw in Payload and decoded by the dispatcher per method.
type userAuthRequestMsg struct {
	_       struct{} `sshtype:"50"`
	User    string
	Service string
	Method  string
	Payload []byte `ssh:"rest"`
}

type userAuthFailureMsg struct {
	_       struct{} `sshtype:"51"`
	Methods []string
	Partial bool
}

type userAuthSuccessMsg struct {
	_ struct{} `sshtype:"52"`
}

type userAuthBannerMsg struct {
	_       struct{} `sshtype:"53"`
	Message string
	Lang    string
}

type userAuthPubKeyOkMsg struct {
	_      struct{} `sshtype:"60"`
	Algo   string
	PubKey []byte
}

type userAuthInfoRequestMsg struct {
	_            struct{} `sshtype:"60"`
	Name         string
	Instructions string
	Lang         string
	NumPrompts   uint32
	Prompts      []byte `ssh:"rest"`
}

type userAuthInfoResponseMsg struct {
	_       struct{} `sshtype:"61"`
	NumResp uint32
	Answers []byte `ssh:"rest"`
}

// publickeyAuthMsg describes the bytes that follow the
// userAuthRequestMsg common prefix for the "publickey" method; it is
// never Marshal'd directly as a standalone message (it shares message
// number 50 with userAuthRequestMsg). handler.go builds and parses
// that trailing Payload by hand in the same field order, mirroring how
// golang.org/x/crypto/ssh's client_auth.go composes these requests.

type publickeyAuthMsg struct {
	HasSig   bool
	Algoname string
	PubKey   []byte
	Sig      []byte `ssh:"rest"`
}
