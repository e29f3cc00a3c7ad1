package driver

import (
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
)

const (
	cookie = "$EXI"

	// headerByte holds the distinguishing bits, no options and version 1.
	headerByte = 0x80
)

func schemaQName(q QName) schema.QName {
	return schema.QName{
		URI:   q.URI,
		Local: q.Local,
	}
}

func qnameOf(n *name.Context, prefix string) QName {
	return QName{
		URI:    n.URI,
		Local:  n.LocalName,
		Prefix: prefix,
	}
}

func (c *coder) writeHeader(ch EncoderChannel) error {
	if c.cookie {
		for _, b := range []byte(cookie) {
			if err := ch.EncodeNBitUnsignedInteger(uint64(b), 8); err != nil {
				return err
			}
		}
	}
	return ch.EncodeNBitUnsignedInteger(headerByte, 8)
}

func (c *coder) readHeader(ch DecoderChannel) error {
	b, err := ch.DecodeNBitUnsignedInteger(8)
	if err != nil {
		return err
	}
	if b == uint64(cookie[0]) {
		for i := 1; i < len(cookie); i++ {
			v, err := ch.DecodeNBitUnsignedInteger(8)
			if err != nil {
				return err
			}
			if byte(v) != cookie[i] {
				return errors.Wrap(ErrInvalidHeader, "broken cookie")
			}
		}
		b, err = ch.DecodeNBitUnsignedInteger(8)
		if err != nil {
			return err
		}
	}
	if b != headerByte {
		return errors.Wrapf(ErrInvalidHeader, "unsupported header: %#02x", b)
	}
	return nil
}

// lookupName finds the context of q in the session tables without adding it.
func (c *coder) lookupName(q QName) (*name.Context, bool) {
	return c.session.Names().Reader().Lookup(q.URI, q.Local)
}

// writeURI codes uri against the uri partition. A hit is the id plus one; a
// miss is a zero followed by the literal, which then joins the partition.
func (c *coder) writeURI(ch EncoderChannel, uri string) (*name.URIContext, error) {
	names := c.session.Names()
	r := names.Reader()
	w := grammar.Width(r.URICount() + 1)
	if u, ok := r.LookupURI(uri); ok {
		return u, ch.EncodeNBitUnsignedInteger(uint64(u.ID+1), w)
	}
	if err := ch.EncodeNBitUnsignedInteger(0, w); err != nil {
		return nil, err
	}
	if err := ch.EncodeString(uri); err != nil {
		return nil, err
	}
	return names.Writer().InternURI(uri), nil
}

func (c *coder) readURI(ch DecoderChannel) (*name.URIContext, error) {
	names := c.session.Names()
	r := names.Reader()
	v, err := ch.DecodeNBitUnsignedInteger(grammar.Width(r.URICount() + 1))
	if err != nil {
		return nil, err
	}
	if v == 0 {
		uri, err := ch.DecodeString()
		if err != nil {
			return nil, err
		}
		return names.Writer().InternURI(uri), nil
	}
	u, ok := r.URI(int(v - 1))
	if !ok {
		return nil, errors.Wrapf(ErrInvalidValue, "unknown uri id: %v", v-1)
	}
	return u, nil
}

// writeLocalName codes local against the local-name partition of u. A hit is
// a zero length followed by the id; a miss is the length plus one and the
// literal.
func (c *coder) writeLocalName(ch EncoderChannel, u *name.URIContext, local string) (*name.Context, error) {
	if n, ok := u.LookupLocalName(local); ok {
		if err := ch.EncodeUnsignedInteger(0); err != nil {
			return nil, err
		}
		return n, ch.EncodeNBitUnsignedInteger(uint64(n.LocalNameID), grammar.Width(u.LocalNameCount()))
	}
	if err := ch.EncodeUnsignedInteger(uint64(len([]rune(local))) + 1); err != nil {
		return nil, err
	}
	if err := ch.EncodeCodePoints(local); err != nil {
		return nil, err
	}
	return c.session.Names().Writer().Intern(u.URI, local), nil
}

func (c *coder) readLocalName(ch DecoderChannel, u *name.URIContext) (*name.Context, error) {
	l, err := ch.DecodeUnsignedInteger()
	if err != nil {
		return nil, err
	}
	if l == 0 {
		id, err := ch.DecodeNBitUnsignedInteger(grammar.Width(u.LocalNameCount()))
		if err != nil {
			return nil, err
		}
		n, ok := u.LocalName(int(id))
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "unknown local-name id: %v in %v", id, u.URI)
		}
		return n, nil
	}
	local, err := ch.DecodeCodePoints(int(l - 1))
	if err != nil {
		return nil, err
	}
	return c.session.Names().Writer().Intern(u.URI, local), nil
}

func (c *coder) writeQName(ch EncoderChannel, q QName) (*name.Context, error) {
	u, err := c.writeURI(ch, q.URI)
	if err != nil {
		return nil, err
	}
	return c.writeLocalName(ch, u, q.Local)
}

func (c *coder) readQName(ch DecoderChannel) (*name.Context, error) {
	u, err := c.readURI(ch)
	if err != nil {
		return nil, err
	}
	return c.readLocalName(ch, u)
}

// uriOf returns the partition a name belongs to, creating it for namespaces
// that only wildcards mention.
func (c *coder) uriOf(uri string) *name.URIContext {
	return c.session.Names().Writer().InternURI(uri)
}

// writePrefix codes prefix against the prefix partition of u. Prefixes are
// only coded when the stream preserves them.
func (c *coder) writePrefix(ch EncoderChannel, u *name.URIContext, prefix string) error {
	if !c.fidelity.Prefixes {
		return nil
	}
	w := grammar.Width(len(u.Prefixes()) + 1)
	if id, ok := u.PrefixID(prefix); ok {
		return ch.EncodeNBitUnsignedInteger(uint64(id+1), w)
	}
	if err := ch.EncodeNBitUnsignedInteger(0, w); err != nil {
		return err
	}
	if err := ch.EncodeString(prefix); err != nil {
		return err
	}
	c.session.Names().Writer().InternPrefix(u.ID, prefix)
	return nil
}

func (c *coder) readPrefix(ch DecoderChannel, u *name.URIContext) (string, error) {
	if !c.fidelity.Prefixes {
		return "", nil
	}
	v, err := ch.DecodeNBitUnsignedInteger(grammar.Width(len(u.Prefixes()) + 1))
	if err != nil {
		return "", err
	}
	if v == 0 {
		prefix, err := ch.DecodeString()
		if err != nil {
			return "", err
		}
		c.session.Names().Writer().InternPrefix(u.ID, prefix)
		return prefix, nil
	}
	prefix, ok := u.Prefix(int(v - 1))
	if !ok {
		return "", errors.Wrapf(ErrInvalidValue, "unknown prefix id: %v in %v", v-1, u.URI)
	}
	return prefix, nil
}
