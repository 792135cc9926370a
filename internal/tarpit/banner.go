package tarpit

// MaxLineBuf is the largest buffer RandLine ever needs: MaxLineLength tops
// out at 255, so every generated line fits comfortably in a 256-byte buffer.
const MaxLineBuf = 256

var sshPrefix = [4]byte{'S', 'S', 'H', '-'}

// RandLine fills buf with one random, CRLF-terminated pre-banner line and
// returns its length. Length is 3 + rng()%(maxLen-2), so it always falls in
// [3, maxLen]. All bytes before the trailing CR/LF are printable ASCII
// (0x20..0x7E). If those bytes would spell the RFC-4253 identification
// prefix "SSH-", the first byte is replaced so the line can never be
// mistaken for the server's real SSH banner.
func RandLine(buf []byte, maxLen int, rng *RNG) int {
	length := 3 + int(rng.Next())%(maxLen-2)
	for i := 0; i < length-2; i++ {
		buf[i] = byte(32 + int(rng.Next())%95)
	}
	buf[length-2] = '\r'
	buf[length-1] = '\n'
	if length >= 4 && buf[0] == sshPrefix[0] && buf[1] == sshPrefix[1] &&
		buf[2] == sshPrefix[2] && buf[3] == sshPrefix[3] {
		buf[0] = 'X'
	}
	return length
}
