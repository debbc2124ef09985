package decode

import "crypto/rc4"

// ARC4 is the stream cipher Counterparty and Stamps key on the first
// input's txid. crypto/rc4 is the standard library's implementation of
// the algorithm; no third-party package in the retrieval pack offers
// anything beyond what it already provides, so this is the one place
// the classifier reaches for stdlib crypto instead of an ecosystem lib.
//
// ARC4 is a symmetric stream cipher: ARC4(ARC4(x, k), k) == x for any
// key k and payload x.
func ARC4(data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, rc4.KeySizeError(0)
	}
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}
