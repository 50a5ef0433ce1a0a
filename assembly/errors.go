package assembly

import "errors"

var (
	errMissingCLIHeader     = errors.New("no CLI runtime header directory")
	errBadCLIHeaderSize     = errors.New("cli header size mismatch")
	errBadMetadataMagic     = errors.New("bad BSJB magic")
	errTruncatedMetadataRoot = errors.New("metadata root truncated")
	errMissingTildeStream   = errors.New("missing #~ stream")
	errAbstractMethod          = errors.New("method has no RVA (abstract or extern)")
	errUnsupportedMethodHeader = errors.New("method header is neither tiny nor fat")
)
