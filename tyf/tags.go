// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import "fmt"

// UnknownPrefix is used as prefix for unknown tag and key names.
const UnknownPrefix = "UnknownTag_"

var (
	fieldsTiff = map[uint16]string{0xfe: "NewSubfileType", 0xff: "SubfileType", 0x100: "ImageWidth", 0x101: "ImageLength", 0x102: "BitsPerSample", 0x103: "Compression", 0x106: "PhotometricInterpretation", 0x107: "Threshholding", 0x108: "CellWidth", 0x109: "CellLength", 0x10a: "FillOrder", 0x10d: "DocumentName", 0x10e: "ImageDescription", 0x10f: "Make", 0x110: "Model", 0x111: "StripOffsets", 0x112: "Orientation", 0x115: "SamplesPerPixel", 0x116: "RowsPerStrip", 0x117: "StripByteCounts", 0x118: "MinSampleValue", 0x119: "MaxSampleValue", 0x11a: "XResolution", 0x11b: "YResolution", 0x11c: "PlanarConfiguration", 0x11d: "PageName", 0x11e: "XPosition", 0x11f: "YPosition", 0x120: "FreeOffsets", 0x121: "FreeByteCounts", 0x122: "GrayResponseUnit", 0x123: "GrayResponseCurve", 0x128: "ResolutionUnit", 0x129: "PageNumber", 0x12d: "TransferFunction", 0x131: "Software", 0x132: "DateTime", 0x13b: "Artist", 0x13c: "HostComputer", 0x13d: "Predictor", 0x13e: "WhitePoint", 0x13f: "PrimaryChromaticities", 0x140: "ColorMap", 0x141: "HalftoneHints", 0x142: "TileWidth", 0x143: "TileLength", 0x144: "TileOffsets", 0x145: "TileByteCounts", 0x14a: "SubIFDs", 0x152: "ExtraSamples", 0x153: "SampleFormat", 0x154: "SMinSampleValue", 0x155: "SMaxSampleValue", 0x201: "JPEGInterchangeFormat", 0x202: "JPEGInterchangeFormatLength", 0x211: "YCbCrCoefficients", 0x212: "YCbCrSubSampling", 0x213: "YCbCrPositioning", 0x214: "ReferenceBlackWhite", 0x8298: "Copyright", 0x8769: "ExifIFDPointer", 0x8825: "GPSInfoIFDPointer", 0xa005: "InteroperabilityIFDPointer"}
	fieldsExif = map[uint16]string{0x829a: "ExposureTime", 0x829d: "FNumber", 0x8822: "ExposureProgram", 0x8824: "SpectralSensitivity", 0x8827: "ISOSpeedRatings", 0x8828: "OECF", 0x9000: "ExifVersion", 0x9003: "DateTimeOriginal", 0x9004: "DateTimeDigitized", 0x9101: "ComponentsConfiguration", 0x9102: "CompressedBitsPerPixel", 0x9201: "ShutterSpeedValue", 0x9202: "ApertureValue", 0x9203: "BrightnessValue", 0x9204: "ExposureBiasValue", 0x9205: "MaxApertureValue", 0x9206: "SubjectDistance", 0x9207: "MeteringMode", 0x9208: "LightSource", 0x9209: "Flash", 0x920a: "FocalLength", 0x9214: "SubjectArea", 0x927c: "MakerNote", 0x9286: "UserComment", 0x9290: "SubSecTime", 0x9291: "SubSecTimeOriginal", 0x9292: "SubSecTimeDigitized", 0x9c9b: "XPTitle", 0x9c9c: "XPComment", 0x9c9d: "XPAuthor", 0x9c9e: "XPKeywords", 0x9c9f: "XPSubject", 0xa000: "FlashpixVersion", 0xa001: "ColorSpace", 0xa002: "PixelXDimension", 0xa003: "PixelYDimension", 0xa004: "RelatedSoundFile", 0xa20b: "FlashEnergy", 0xa20c: "SpatialFrequencyResponse", 0xa20e: "FocalPlaneXResolution", 0xa20f: "FocalPlaneYResolution", 0xa210: "FocalPlaneResolutionUnit", 0xa214: "SubjectLocation", 0xa215: "ExposureIndex", 0xa217: "SensingMethod", 0xa300: "FileSource", 0xa301: "SceneType", 0xa302: "CFAPattern", 0xa401: "CustomRendered", 0xa402: "ExposureMode", 0xa403: "WhiteBalance", 0xa404: "DigitalZoomRatio", 0xa405: "FocalLengthIn35mmFilm", 0xa406: "SceneCaptureType", 0xa420: "ImageUniqueID", 0xa433: "LensMake", 0xa434: "LensModel"}
	fieldsGps  = map[uint16]string{0x0: "GPSVersionID", 0x1: "GPSLatitudeRef", 0x2: "GPSLatitude", 0x3: "GPSLongitudeRef", 0x4: "GPSLongitude", 0x5: "GPSAltitudeRef", 0x6: "GPSAltitude", 0x7: "GPSTimeStamp", 0x8: "GPSSatellites", 0x9: "GPSStatus", 0xa: "GPSMeasureMode", 0xb: "GPSDOP", 0xc: "GPSSpeedRef", 0xd: "GPSSpeed", 0xe: "GPSTrackRef", 0xf: "GPSTrack", 0x10: "GPSImgDirectionRef", 0x11: "GPSImgDirection", 0x12: "GPSMapDatum", 0x13: "GPSDestLatitudeRef", 0x14: "GPSDestLatitude", 0x15: "GPSDestLongitudeRef", 0x16: "GPSDestLongitude", 0x17: "GPSDestBearingRef", 0x18: "GPSDestBearing", 0x19: "GPSDestDistanceRef", 0x1a: "GPSDestDistance", 0x1b: "GPSProcessingMethod", 0x1c: "GPSAreaInformation", 0x1d: "GPSDateStamp", 0x1e: "GPSDifferential"}
	fieldsGeo  = map[uint16]string{33550: "ModelPixelScaleTag", 33922: "ModelTiepointTag", 34264: "ModelTransformationTag", 34735: "GeoKeyDirectoryTag", 34736: "GeoDoubleParamsTag", 34737: "GeoAsciiParamsTag"}

	fieldsAll = map[uint16]string{}
)

var geoKeyNames = map[uint16]string{1024: "GTModelTypeGeoKey", 1025: "GTRasterTypeGeoKey", 1026: "GTCitationGeoKey", 2048: "GeographicTypeGeoKey", 2049: "GeogCitationGeoKey", 2050: "GeogGeodeticDatumGeoKey", 2051: "GeogPrimeMeridianGeoKey", 2052: "GeogLinearUnitsGeoKey", 2053: "GeogLinearUnitSizeGeoKey", 2054: "GeogAngularUnitsGeoKey", 2055: "GeogAngularUnitSizeGeoKey", 2056: "GeogEllipsoidGeoKey", 2057: "GeogSemiMajorAxisGeoKey", 2058: "GeogSemiMinorAxisGeoKey", 2059: "GeogInvFlatteningGeoKey", 2060: "GeogAzimuthUnitsGeoKey", 2061: "GeogPrimeMeridianLongGeoKey", 3072: "ProjectedCSTypeGeoKey", 3073: "PCSCitationGeoKey", 3074: "ProjectionGeoKey", 3075: "ProjCoordTransGeoKey", 3076: "ProjLinearUnitsGeoKey", 3077: "ProjLinearUnitSizeGeoKey", 3078: "ProjStdParallel1GeoKey", 3079: "ProjStdParallel2GeoKey", 3080: "ProjNatOriginLongGeoKey", 3081: "ProjNatOriginLatGeoKey", 3082: "ProjFalseEastingGeoKey", 3083: "ProjFalseNorthingGeoKey", 3084: "ProjFalseOriginLongGeoKey", 3085: "ProjFalseOriginLatGeoKey", 3086: "ProjFalseOriginEastingGeoKey", 3087: "ProjFalseOriginNorthingGeoKey", 3088: "ProjCenterLongGeoKey", 3089: "ProjCenterLatGeoKey", 3090: "ProjCenterEastingGeoKey", 3091: "ProjCenterNorthingGeoKey", 3092: "ProjScaleAtNatOriginGeoKey", 3093: "ProjScaleAtCenterGeoKey", 3094: "ProjAzimuthAngleGeoKey", 3095: "ProjStraightVertPoleLongGeoKey", 4096: "VerticalCSTypeGeoKey", 4097: "VerticalCitationGeoKey", 4098: "VerticalDatumGeoKey", 4099: "VerticalUnitsGeoKey"}

var geoKeyIDsByName = map[string]uint16{}

// Meanings of a few enumerated tag and key values, for display.
var (
	meaningsCompression = map[uint32]string{1: "none", 2: "CCITT Group 3", 3: "CCITT T.4", 4: "CCITT T.6", 5: "LZW", 6: "JPEG (old style)", 7: "JPEG", 8: "Deflate", 32773: "PackBits"}
	meaningsPhotometric = map[uint32]string{0: "WhiteIsZero", 1: "BlackIsZero", 2: "RGB", 3: "palette", 4: "transparency mask", 5: "CMYK", 6: "YCbCr", 8: "CIELab"}
	meaningsOrientation = map[uint32]string{1: "top-left", 2: "top-right", 3: "bottom-right", 4: "bottom-left", 5: "left-top", 6: "right-top", 7: "right-bottom", 8: "left-bottom"}
	meaningsModelType   = map[uint32]string{0: "undefined", 1: "projected", 2: "geographic", 3: "geocentric", 32767: "user-defined"}
	meaningsRasterType  = map[uint32]string{0: "undefined", 1: "RasterPixelIsArea", 2: "RasterPixelIsPoint", 32767: "user-defined"}

	tagMeanings = map[uint16]map[uint32]string{
		0x103: meaningsCompression,
		0x106: meaningsPhotometric,
		0x112: meaningsOrientation,
	}
	geoKeyMeanings = map[uint16]map[uint32]string{
		1024: meaningsModelType,
		1025: meaningsRasterType,
	}
)

func init() {
	for k, v := range fieldsTiff {
		fieldsAll[k] = v
	}
	for k, v := range fieldsExif {
		fieldsAll[k] = v
	}
	for k, v := range fieldsGeo {
		fieldsAll[k] = v
	}
	for k, v := range geoKeyNames {
		geoKeyIDsByName[v] = k
	}
}

// TagName returns the display name of a tag ID. GPS tag numbers
// overlap the low baseline range, so pass gps true for tags of a GPS
// sub-IFD.
func TagName(id uint16, gps bool) string {
	if gps {
		if name, ok := fieldsGps[id]; ok {
			return name
		}
	}
	if name, ok := fieldsAll[id]; ok {
		return name
	}
	return fmt.Sprintf("%s0x%x", UnknownPrefix, id)
}

// GeoKeyName returns the display name of a GeoKey ID.
func GeoKeyName(id uint16) string {
	if name, ok := geoKeyNames[id]; ok {
		return name
	}
	return fmt.Sprintf("%s%d", UnknownPrefix, id)
}

// TagMeaning returns the human meaning of an enumerated tag value, or
// the empty string.
func TagMeaning(id uint16, value any) string {
	return lookupMeaning(tagMeanings[id], value)
}

// GeoKeyMeaning returns the human meaning of an enumerated GeoKey
// value, or the empty string.
func GeoKeyMeaning(id uint16, value any) string {
	return lookupMeaning(geoKeyMeanings[id], value)
}

func lookupMeaning(m map[uint32]string, value any) string {
	if m == nil {
		return ""
	}
	var code uint32
	switch v := value.(type) {
	case uint16:
		code = uint32(v)
	case uint32:
		code = v
	case int:
		code = uint32(v)
	default:
		return ""
	}
	return m[code]
}
