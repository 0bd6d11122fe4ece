package site

import (
	"html"
	"html/template"
	"strconv"
	"strings"
)

// ImageWidth is the transform width used by the image shortcode.
const ImageWidth = 800

// cdnSegments are the Cloudinary delivery types that accept a transformation.
var cdnSegments = []string{"upload/", "fetch/", "youtube/"}

// CDNImage inserts a responsive Cloudinary transformation after the delivery
// type segment. A width of zero or less lets the CDN choose. Other URLs are
// returned unchanged.
func CDNImage(url string, width int) string {
	if !strings.Contains(url, "cloudinary") {
		return url
	}
	w := "auto"
	if width > 0 {
		w = strconv.Itoa(width)
	}
	for _, seg := range cdnSegments {
		if strings.Contains(url, seg) {
			return strings.Replace(url, seg, seg+"w_"+w+",f_auto,q_auto,dpr_2.0/", 1)
		}
	}
	return url
}

// Image renders an <img>, wrapped in a <figure> when a caption is given. The
// caption is trusted markup and is inserted unescaped.
func Image(url, alt, caption string) template.HTML {
	src := html.EscapeString(CDNImage(url, ImageWidth))
	img := `<img src="` + src + `" alt="` + html.EscapeString(alt) + `" />`
	if caption == "" {
		return template.HTML(img)
	}
	return template.HTML("<figure>" + img + "<figcaption>" + caption + "</figcaption></figure>")
}
