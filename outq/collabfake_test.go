package outq

import "sync"

// Fakes for every collaborator interface, used to drive OutQueue in
// isolation with no network underneath.

type fakePacket struct {
	mu sync.Mutex

	configResult  PacketConfigResult
	tailAccepts   int // -1 means always accept
	tailCalls     int
	createCalls   int
	flushCalls    int
	flushResult   bool
	tagLen        int
	mss           uint32
	filterLevel   Level
	filterOn      bool
	ecnResets     int
	xmitPayloads  []interface{}
	sentFrames    []*Frame
	onTail        func(f *Frame, isDgram bool) bool
}

func newFakePacket() *fakePacket {
	return &fakePacket{configResult: PacketConfigProceed, tailAccepts: -1, tagLen: 16}
}

func (p *fakePacket) Config(level Level, alt PathAlt) PacketConfigResult {
	return p.configResult
}

func (p *fakePacket) Tail(frame *Frame, isDgram bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tailCalls++
	if p.onTail != nil {
		ok := p.onTail(frame, isDgram)
		if ok {
			p.sentFrames = append(p.sentFrames, frame)
		}
		return ok
	}
	if p.tailAccepts < 0 {
		p.sentFrames = append(p.sentFrames, frame)
		return true
	}
	if p.tailAccepts > 0 {
		p.tailAccepts--
		p.sentFrames = append(p.sentFrames, frame)
		return true
	}
	return false
}

func (p *fakePacket) Create() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	// A fresh packet always has room; simulate by re-arming tailAccepts
	// when the test wants bounded capacity per packet.
}

func (p *fakePacket) Flush() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushCalls++
	return p.flushResult
}

func (p *fakePacket) MSSUpdate(size uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mss = size
}

func (p *fakePacket) SetFilter(level Level, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filterLevel = level
	p.filterOn = on
}

func (p *fakePacket) TagLen() int { return p.tagLen }

func (p *fakePacket) SetTagLen(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tagLen = n
}

func (p *fakePacket) ResetECNProbeCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ecnResets++
}

func (p *fakePacket) Xmit(payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xmitPayloads = append(p.xmitPayloads, payload)
}

type fakeCong struct {
	mu          sync.Mutex
	window      uint64
	rto         uint64
	duration    uint64
	rttUpdates  int
	sackUpdates int
	toUpdates   int
}

func newFakeCong(window uint64) *fakeCong {
	return &fakeCong{window: window, rto: 300_000, duration: 200_000}
}

func (c *fakeCong) RTTUpdate(transmitTs, ackDelay uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rttUpdates++
}
func (c *fakeCong) RTO() uint64      { return c.rto }
func (c *fakeCong) Duration() uint64 { return c.duration }
func (c *fakeCong) Window() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}
func (c *fakeCong) CwndUpdateAfterSACK(firstAckedNumber int64, firstAckedTransmitTs, ackedBytes, dataInflight uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sackUpdates++
}
func (c *fakeCong) CwndUpdateAfterTimeout(number int64, transmitTs uint64, last int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toUpdates++
	c.window /= 2
}

type fakePNMap struct {
	mu         sync.Mutex
	next       int64
	lossTs     uint64
	inflight   uint64
	lastSentTs uint64
	maxPnAcked int64
}

func newFakePNMap() *fakePNMap { return &fakePNMap{} }

func (m *fakePNMap) NextNumber() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.next
	m.next++
	return n
}
func (m *fakePNMap) LossTs() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lossTs
}
func (m *fakePNMap) SetLossTs(ts uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lossTs = ts
}
func (m *fakePNMap) Inflight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}
func (m *fakePNMap) DecInflight(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight -= n
}
func (m *fakePNMap) LastSentTs() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSentTs
}
func (m *fakePNMap) MaxPnAcked() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxPnAcked
}
func (m *fakePNMap) SetMaxPnAcked(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxPnAcked = n
}
func (m *fakePNMap) SetMaxRecordTs(ts uint64) {}

type fakeCrypto struct {
	ready bool
}

func (c *fakeCrypto) SendReady() bool          { return c.ready }
func (c *fakeCrypto) SetKeyUpdateTs(ts uint64) {}

type fakePath struct {
	mu          sync.Mutex
	confirm     bool
	mtu         uint32
	raise       bool
	complete    bool
	sendMtu     uint32
	udpBind     bool
	probeTs     uint64
	ecnMarks    int
	addrFrees   int
	swaps       int
	sentCounts  []int
}

func newFakePath() *fakePath { return &fakePath{complete: true, probeTs: 1000} }

func (p *fakePath) PLConfirm(largest, smallest int64) bool { return p.confirm }
func (p *fakePath) PLRecv() (uint32, bool, bool)            { return p.mtu, p.raise, p.complete }
func (p *fakePath) PLSend(pn int64) uint32                  { return p.sendMtu }
func (p *fakePath) AddrFree() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addrFrees++
}
func (p *fakePath) SwapActive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.swaps++
}
func (p *fakePath) SetSentCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentCounts = append(p.sentCounts, n)
}
func (p *fakePath) UDPBind() bool { return p.udpBind }
func (p *fakePath) MarkECNEcho() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ecnMarks++
}
func (p *fakePath) ProbeTimeout() uint64 { return p.probeTs }

type timerCall struct {
	kind    TimerKind
	timeout uint64
}

type fakeTimer struct {
	mu      sync.Mutex
	starts  []timerCall
	resets  []timerCall
	reduces []timerCall
	stops   []TimerKind
}

func newFakeTimer() *fakeTimer { return &fakeTimer{} }

func (t *fakeTimer) Start(kind TimerKind, timeout uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts = append(t.starts, timerCall{kind, timeout})
}
func (t *fakeTimer) Reset(kind TimerKind, timeout uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets = append(t.resets, timerCall{kind, timeout})
}
func (t *fakeTimer) Reduce(kind TimerKind, timeout uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reduces = append(t.reduces, timerCall{kind, timeout})
}
func (t *fakeTimer) Stop(kind TimerKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops = append(t.stops, kind)
}

type fakeUplink struct {
	mu       sync.Mutex
	accept   bool
	received []struct {
		kind    EventKind
		payload interface{}
	}
}

func newFakeUplink(accept bool) *fakeUplink { return &fakeUplink{accept: accept} }

func (u *fakeUplink) EventRecv(kind EventKind, payload interface{}) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.received = append(u.received, struct {
		kind    EventKind
		payload interface{}
	}{kind, payload})
	return u.accept
}

type fakeMem struct {
	mu      sync.Mutex
	charged uint64
	freed   uint64
	limit   uint64
}

func (m *fakeMem) Charge(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charged += n
}
func (m *fakeMem) Release(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freed += n
}
func (m *fakeMem) SetLimit(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = n
}

// newFakeCollaborators returns a fully-wired Collaborators with sane
// defaults: crypto ready at every level, ample congestion window, no
// pending PMTU raise.
func newFakeCollaborators(window uint64) (Collaborators, *fakePacket, *fakeCong, *fakePath, *fakeTimer, *fakeUplink) {
	packet := newFakePacket()
	cong := newFakeCong(window)
	path := newFakePath()
	timer := newFakeTimer()
	uplink := newFakeUplink(true)
	mem := &fakeMem{}

	var pnmaps [levelCount]PNMap
	var cryptos [levelCount]Crypto
	for i := 0; i < levelCount; i++ {
		pnmaps[i] = newFakePNMap()
		cryptos[i] = &fakeCrypto{ready: true}
	}

	collab := Collaborators{
		Packet: packet,
		Cong:   cong,
		PNMap:  pnmaps,
		Crypto: cryptos,
		Path:   path,
		Timer:  timer,
		Uplink: uplink,
		Mem:    mem,
	}
	return collab, packet, cong, path, timer, uplink
}
