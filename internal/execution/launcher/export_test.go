package launcher

var Classify = classify
