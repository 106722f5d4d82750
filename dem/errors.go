package dem

import "errors"

var (
	ErrWorldFileShort   = errors.New("dem: world file has fewer than six lines")
	ErrNoGeotransform   = errors.New("dem: unable to determine a geotransform from tags or tiepoints")
	ErrDegenerateXform  = errors.New("dem: geotransform determinant is too small to invert")
	ErrLengthMismatch   = errors.New("dem: lats and lons must have equal length")
	ErrUnsupportedCodec = errors.New("dem: TIFF compression codec is not supported by the decoder")
	ErrBufferShort      = errors.New("dem: TIFF tag or strip read would exceed the buffer")
)
