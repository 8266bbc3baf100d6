package mtproto

// Constructor tags for the encrypted-transport envelope's dispatchable
// children, taken from the public TL schema.
const (
	msgContainerConstructor      uint32 = 0x73f1f8dc
	newSessionCreatedConstructor uint32 = 0x9ec20908
	msgsAckConstructor           uint32 = 0x62d6b459
	rpcResultConstructor         uint32 = 0xf35c6d01
	rpcErrorConstructor          uint32 = 0x2144ca19
	gzipPackedConstructor        uint32 = 0x3072cfa1
	badServerSaltConstructor     uint32 = 0xedab447b
	badMsgNotificationConstructor uint32 = 0xa7eff811
	pongConstructor              uint32 = 0x347773c5
	msgDetailedInfoConstructor    uint32 = 0x276d3ec6
	msgNewDetailedInfoConstructor uint32 = 0x809db6df
)

// maxGzipInflated caps a gzip_packed child's decompressed size.
const maxGzipInflated = 16 * 1024 * 1024
