package handshake

// Constructor tags for the unauthenticated key-exchange objects, from
// the public TL schema.
const (
	reqPQConstructor              uint32 = 0x60469778
	resPQConstructor              uint32 = 0x05162463
	reqDHParamsConstructor        uint32 = 0xd712e4be
	pQInnerDataConstructor        uint32 = 0x83c95aec
	pQInnerDataTempConstructor    uint32 = 0x3c6a84d4
	serverDHParamsFailConstructor uint32 = 0x79cb045d
	serverDHParamsOKConstructor   uint32 = 0xd0e8075c
	serverDHInnerDataConstructor  uint32 = 0xb5890dba
	setClientDHParamsConstructor  uint32 = 0xf5045f1f
	clientDHInnerDataConstructor  uint32 = 0x6643b654
	dhGenOKConstructor            uint32 = 0x3bcbf734
	dhGenRetryConstructor         uint32 = 0x46dc1fb9
	dhGenFailConstructor          uint32 = 0xa69dae02
)
